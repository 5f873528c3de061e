package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drennalls/slotline/internal/model"
)

func createTestHardware(t *testing.T, url, body string) *model.HardwareCombination {
	t.Helper()
	resp, err := http.Post(url+"/v1/hardware", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/hardware: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var h model.HardwareCombination
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &h
}

func TestCreateHardwareFullDayMaskByDefault(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	h := createTestHardware(t, ts.URL, `{"platform":"board-a","debugger":"probe-x","quantity":2}`)
	if h.Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", h.Quantity)
	}
	for hour := 0; hour < model.HoursPerDay; hour++ {
		if !h.Mask.Allows(hour) {
			t.Fatalf("default mask excludes hour %d", hour)
		}
	}
}

func TestCreateHardwareWithMask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Enabled 09:00 through 16:59 only.
	mask := "000000000111111110000000"
	h := createTestHardware(t, ts.URL,
		`{"platform":"board-a","debugger":"probe-x","quantity":1,"hours_mask":"`+mask+`"}`)

	if h.Mask.String() != mask {
		t.Errorf("Mask = %q, want %q", h.Mask.String(), mask)
	}
	if h.Mask.Allows(8) {
		t.Error("hour 8 should be excluded")
	}
	if !h.Mask.Allows(9) {
		t.Error("hour 9 should be allowed")
	}
}

func TestCreateHardwareRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cases := []struct {
		name string
		body string
	}{
		{"missing platform", `{"debugger":"probe-x","quantity":1}`},
		{"missing debugger", `{"platform":"board-a","quantity":1}`},
		{"negative quantity", `{"platform":"board-a","debugger":"probe-x","quantity":-1}`},
		{"short mask", `{"platform":"board-a","debugger":"probe-x","quantity":1,"hours_mask":"101"}`},
		{"bad mask chars", `{"platform":"board-a","debugger":"probe-x","quantity":1,"hours_mask":"` + strings.Repeat("x", 24) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/hardware", "application/json", bytes.NewBufferString(tc.body))
			if err != nil {
				t.Fatalf("POST /v1/hardware: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestZeroQuantityHardwareAccepted(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	h := createTestHardware(t, ts.URL, `{"platform":"board-a","debugger":"probe-x","quantity":0}`)
	if h.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", h.Quantity)
	}
}

func TestListAndDeleteHardware(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	h := createTestHardware(t, ts.URL, `{"platform":"board-a","debugger":"probe-x","quantity":1}`)
	createTestHardware(t, ts.URL, `{"platform":"board-b","debugger":"probe-y","quantity":3}`)

	resp, err := http.Get(ts.URL + "/v1/hardware")
	if err != nil {
		t.Fatalf("GET /v1/hardware: %v", err)
	}
	var list listHardwareResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp.Body.Close()
	if list.Total != 2 {
		t.Errorf("Total = %d, want 2", list.Total)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/hardware/"+h.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", delResp.StatusCode)
	}
}
