package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/softreason/softreason/pkg/logger"
)

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantLevel string
	}{
		{name: "query ok", method: http.MethodPost, path: "/api/v1/memories/query", status: http.StatusOK, wantLevel: "INFO"},
		{name: "probe", method: http.MethodGet, path: "/health", status: http.StatusOK, wantLevel: "DEBUG"},
		{name: "bad ingest", method: http.MethodPost, path: "/api/v1/memories", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "store failure", method: http.MethodPost, path: "/api/v1/memories/prune", status: http.StatusInternalServerError, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWriter(&buf, logger.DebugLevel, "json")
			handler := RequestID()(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"ok":true}`))
			})))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(RequestIDHeader, "req-"+strings.ReplaceAll(tt.name, " ", "-"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if line["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", line["level"], tt.wantLevel)
			}
			if line["path"] != tt.path || line["status"] != float64(tt.status) || line["size"] != float64(11) {
				t.Errorf("unexpected fields %v", line)
			}
			if line["request_id"] != req.Header.Get(RequestIDHeader) {
				t.Errorf("request_id = %v, want %s", line["request_id"], req.Header.Get(RequestIDHeader))
			}
		})
	}
}
