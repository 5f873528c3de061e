package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drennalls/slotline/internal/model"
)

// csvColumns is the expected header of a session import file.
var csvColumns = []string{
	"name", "priority", "os_type", "platform", "debugger",
	"normal_pass", "normal_fail", "normal_not_run",
	"combo_pass", "combo_fail", "combo_not_run",
}

// importResponse reports the outcome of a CSV import. Malformed rows are
// collected per line, never fatal to the rest of the file.
type importResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// handleImportSessions ingests a CSV body of session records. The first row
// must be the header naming the expected columns.
func (s *Server) handleImportSessions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	reader := csv.NewReader(r.Body)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing CSV header")
		return
	}
	if err := checkHeader(header); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var resp importResponse
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		sess, err := sessionFromRecord(record)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if err := s.store.CreateSession(r.Context(), sess); err != nil {
			s.logger.Error("import session", "line", line, "error", err)
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: failed to store session", line))
			continue
		}
		resp.Imported++
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func checkHeader(header []string) error {
	if len(header) != len(csvColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(csvColumns), len(header))
	}
	for i, want := range csvColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return fmt.Errorf("column %d must be %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}

// sessionFromRecord builds a session from one CSV row. Count cells that are
// empty or non-numeric become zero, mirroring the estimator's
// never-fail degradation; structural problems (missing name or OS) reject
// the row.
func sessionFromRecord(record []string) (*model.Session, error) {
	name := strings.TrimSpace(record[0])
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	osType := strings.TrimSpace(record[2])
	if osType == "" {
		return nil, fmt.Errorf("os_type is required")
	}

	priority := strings.TrimSpace(strings.ToLower(record[1]))
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("unknown priority %q", record[1])
	}

	sess := &model.Session{
		ID:       model.NewID(),
		Name:     name,
		Priority: priority,
		OSType:   osType,
		NormalCounts: model.TestCounts{
			Pass:   parseCount(record[5]),
			Fail:   parseCount(record[6]),
			NotRun: parseCount(record[7]),
		},
		ComboCounts: model.TestCounts{
			Pass:   parseCount(record[8]),
			Fail:   parseCount(record[9]),
			NotRun: parseCount(record[10]),
		},
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	platform := strings.TrimSpace(record[3])
	debugger := strings.TrimSpace(record[4])
	if platform != "" && debugger != "" {
		sess.Hardware = &model.HardwareRef{Platform: platform, Debugger: debugger}
	} else if platform != "" || debugger != "" {
		return nil, fmt.Errorf("platform and debugger must both be set or both be empty")
	}

	return sess, nil
}

func parseCount(cell string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
