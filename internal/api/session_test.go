package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drennalls/slotline/internal/model"
)

func createTestSession(t *testing.T, url, body string) *model.Session {
	t.Helper()
	resp, err := http.Post(url+"/v1/sessions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/sessions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var sess model.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &sess
}

func TestCreateSessionValid(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"name":"nightly-regression","os_type":"linux","priority":"high",
		"hardware":{"platform":"board-a","debugger":"probe-x"},
		"normal_counts":{"pass":10,"fail":3,"not_run":5},
		"combo_counts":{"pass":0,"fail":1,"not_run":0}}`
	sess := createTestSession(t, ts.URL, body)

	if len(sess.ID) != 26 {
		t.Errorf("ID length = %d, want 26", len(sess.ID))
	}
	if sess.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", sess.Status, model.StatusPending)
	}
	if sess.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want %q", sess.Priority, model.PriorityHigh)
	}
	if sess.Hardware == nil || sess.Hardware.Platform != "board-a" {
		t.Errorf("Hardware = %+v, want platform board-a", sess.Hardware)
	}
	if sess.NormalCounts.ToRun() != 8 {
		t.Errorf("NormalCounts.ToRun() = %d, want 8", sess.NormalCounts.ToRun())
	}
}

func TestCreateSessionDefaultsPriority(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	sess := createTestSession(t, ts.URL, `{"name":"s","os_type":"linux"}`)
	if sess.Priority != model.PriorityNormal {
		t.Errorf("Priority = %q, want %q", sess.Priority, model.PriorityNormal)
	}
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", "not json"},
		{"missing name", `{"os_type":"linux"}`},
		{"missing os_type", `{"name":"s"}`},
		{"unknown priority", `{"name":"s","os_type":"linux","priority":"asap"}`},
		{"partial hardware", `{"name":"s","os_type":"linux","hardware":{"platform":"board-a"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewBufferString(tc.body))
			if err != nil {
				t.Fatalf("POST /v1/sessions: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTestSession(t, ts.URL, `{"name":"s","os_type":"linux"}`)

	resp, err := http.Get(ts.URL + "/v1/sessions/" + created.ID)
	if err != nil {
		t.Fatalf("GET /v1/sessions/%s: %v", created.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var got model.Session
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/sessions/01JUNKJUNKJUNKJUNKJUNKJUNK")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListSessionsWithStatusFilter(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		createTestSession(t, ts.URL, fmt.Sprintf(`{"name":"s-%d","os_type":"linux"}`, i))
	}

	resp, err := http.Get(ts.URL + "/v1/sessions?status=pending")
	if err != nil {
		t.Fatalf("GET /v1/sessions: %v", err)
	}
	defer resp.Body.Close()

	var list listSessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if list.Total != 3 {
		t.Errorf("Total = %d, want 3", list.Total)
	}

	resp2, err := http.Get(ts.URL + "/v1/sessions?status=completed")
	if err != nil {
		t.Fatalf("GET /v1/sessions: %v", err)
	}
	defer resp2.Body.Close()

	var empty listSessionsResponse
	if err := json.NewDecoder(resp2.Body).Decode(&empty); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if empty.Total != 0 {
		t.Errorf("Total = %d, want 0", empty.Total)
	}
	if empty.Sessions == nil {
		t.Error("Sessions should encode as [], not null")
	}
}

func patchJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH %s: %v", url, err)
	}
	return resp
}

func TestUpdateSessionStatus(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTestSession(t, ts.URL, `{"name":"s","os_type":"linux"}`)

	resp := patchJSON(t, ts.URL+"/v1/sessions/"+created.ID+"/status", `{"status":"scheduled"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got model.Session
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != model.StatusScheduled {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusScheduled)
	}
}

func TestUpdateSessionStatusInvalidTransition(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTestSession(t, ts.URL, `{"name":"s","os_type":"linux"}`)

	// pending -> completed skips scheduling and running.
	resp := patchJSON(t, ts.URL+"/v1/sessions/"+created.ID+"/status", `{"status":"completed"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTestSession(t, ts.URL, `{"name":"s","os_type":"linux"}`)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/v1/sessions/" + created.ID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", getResp.StatusCode)
	}
}
