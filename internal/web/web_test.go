package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutcal/internal/config"
	"scoutcal/internal/syncer"
	"scoutcal/internal/web"
)

const publishedCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Scouting Agenda Merger//NL\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:w-1@example.org\r\n" +
	"DTSTART:20240601T100000Z\r\n" +
	"DTEND:20240601T120000Z\r\n" +
	"SUMMARY:Welpen: Opkomst\r\n" +
	"LOCATION:Clubhuis\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func testServer(t *testing.T) (*web.Server, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{OutputDir: t.TempDir()},
		Calendars: []config.CalendarConfig{
			{
				Name:       "welpen",
				Visibility: "title_only",
				Sources:    []config.SourceConfig{{Name: "Welpen", URL: "http://127.0.0.1:1/welpen.ics"}},
			},
			{
				Name:       "bestuur",
				Visibility: "all_details",
				Password:   "geheim",
				Sources:    []config.SourceConfig{{Name: "Bestuur", URL: "http://127.0.0.1:1/bestuur.ics"}},
			},
		},
	}
	cfg.Normalize()

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Server.OutputDir, "welpen.ics"), []byte(publishedCalendar), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Server.OutputDir, "bestuur.ics"), []byte(publishedCalendar), 0o644))

	return web.NewServer(cfg, syncer.New(cfg)), cfg
}

func get(t *testing.T, s *web.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIndex(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status    string   `json:"status"`
		Calendars []string `json:"calendars"`
		Configured []struct {
			Name string `json:"name"`
			File string `json:"file"`
		} `json:"configured"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"bestuur.ics", "welpen.ics"}, resp.Calendars)
	require.Len(t, resp.Configured, 2)
	assert.Equal(t, "welpen.ics", resp.Configured[0].File)
}

func TestFeedServed(t *testing.T) {
	s, _ := testServer(t)

	rec := get(t, s, "/welpen.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
	assert.Equal(t, publishedCalendar, rec.Body.String())

	// The .ics suffix may be omitted.
	rec = get(t, s, "/welpen")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, publishedCalendar, rec.Body.String())
}

func TestFeedNotFound(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/bevers.ics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedPasswordGate(t *testing.T) {
	s, _ := testServer(t)

	rec := get(t, s, "/bestuur.ics")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, s, "/bestuur.ics?key=fout")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, s, "/bestuur.ics?key=geheim")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, publishedCalendar, rec.Body.String())
}

func TestCalendarsList(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/calendars")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Calendars []struct {
			Name       string `json:"name"`
			File       string `json:"file"`
			URL        string `json:"url"`
			Visibility string `json:"visibility"`
			Exists     bool   `json:"exists"`
			SizeBytes  int64  `json:"size_bytes"`
		} `json:"calendars"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Calendars, 2)

	welpen := resp.Calendars[0]
	assert.Equal(t, "welpen", welpen.Name)
	assert.Equal(t, "/welpen.ics", welpen.URL)
	assert.Equal(t, "title_only", welpen.Visibility)
	assert.True(t, welpen.Exists)
	assert.Equal(t, int64(len(publishedCalendar)), welpen.SizeBytes)
}

func TestEventsJSON(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/events/welpen")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Calendar string `json:"calendar"`
		Events   []struct {
			Title    string `json:"title"`
			Start    string `json:"start"`
			End      string `json:"end"`
			Location string `json:"location"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "welpen", resp.Calendar)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Welpen: Opkomst", resp.Events[0].Title)
	assert.Equal(t, "20240601T100000Z", resp.Events[0].Start)
	assert.Equal(t, "Clubhuis", resp.Events[0].Location)
}

func TestEventsUnknownCalendar(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/events/bevers")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsPasswordGate(t *testing.T) {
	s, _ := testServer(t)

	rec := get(t, s, "/api/events/bestuur")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(t, s, "/api/events/bestuur?key=geheim")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsMissingFile(t *testing.T) {
	s, cfg := testServer(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Server.OutputDir, "welpen.ics")))

	rec := get(t, s, "/api/events/welpen")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncTrigger(t *testing.T) {
	s, _ := testServer(t)

	// The configured sources point at a closed port, so both views end
	// up skipped; the run itself still completes.
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string `json:"status"`
		Skipped int    `json:"skipped"`
		Failed  int    `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 2, resp.Skipped)
	assert.Equal(t, 0, resp.Failed)
}

func TestSyncTriggerRequiresPost(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFeedRejectsTraversal(t *testing.T) {
	s, cfg := testServer(t)

	// Plant a file outside the output dir; it must stay unreachable.
	outside := filepath.Join(filepath.Dir(cfg.Server.OutputDir), "secret.ics")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	for _, path := range []string{
		"/..%2Fsecret.ics",
		"/..%2fsecret",
	} {
		rec := get(t, s, path)
		assert.NotEqual(t, http.StatusOK, rec.Code, "path %s", path)
		assert.NotContains(t, rec.Body.String(), "secret",
			"path %s must not leak file contents", path)
	}
}
