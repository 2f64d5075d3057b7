package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creatorflow-io/QualstarLibrary/internal/config"
	"github.com/creatorflow-io/QualstarLibrary/internal/engine"
	"github.com/creatorflow-io/QualstarLibrary/internal/lock"
	"github.com/creatorflow-io/QualstarLibrary/internal/logutil"
	"github.com/creatorflow-io/QualstarLibrary/internal/procexec"
	"github.com/creatorflow-io/QualstarLibrary/internal/repo"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		TapeLibrary: config.TapeLibrary{
			Drives: []config.DriveConfig{{SlotNumber: 1, Address: "0,0", Serial: "DRIVE1"}},
		},
		ListenAddress: ":0",
	}
	e := engine.New(cfg, logutil.NewLogger(""), procexec.NewScriptedRunner(), lock.NewInProcessLocker(), repo.NoopRepository{}, engine.NewLinuxProcedures())
	return NewRouter(e, nopWriter{})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestWrongMethodReturns405(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/library/drives", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "Invalid request" {
		t.Fatalf("expected the §6 error shape, got %v", body)
	}
}

func TestMalformedPathReturns400(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/library/load/not-an-int/000063L7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-integer drive slot, got %d", rec.Code)
	}
}

func TestMalformedVolumeTagReturns400(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/library/load/1/short", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed volume tag, got %d", rec.Code)
	}
}

func TestUnknownOperationReturnsJSONNull(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/library/operation/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if trimmed := trimJSON(body); trimmed != "null" {
		t.Fatalf("P9: expected JSON null for an unknown trace id, got %q", trimmed)
	}
}

func TestHelpListsEveryRegisteredRoute(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/library/help", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []routeEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected the help catalogue to be non-empty")
	}
}

func trimJSON(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == ' ' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
