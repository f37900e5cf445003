package clientapp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/habitlog/internal/apiapp"
	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/tracker"
)

type testClient struct {
	handler http.Handler
	store   *eventlog.Store
	now     time.Time
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := eventlog.NewCSVTable(t.TempDir())
	require.NoError(t, err)
	store := eventlog.NewStore(table, time.UTC, logger)

	tc := &testClient{store: store, now: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
	svc, err := tracker.NewService(store, tracker.DefaultCategories(8*time.Hour),
		tracker.WithClock(func() time.Time { return tc.now }),
		tracker.WithLogger(logger),
	)
	require.NoError(t, err)
	api := httptest.NewServer(apiapp.NewHandler(svc, apiapp.Config{HistoryLimit: 10}, logger))
	t.Cleanup(api.Close)

	tc.handler, err = NewHandler(Config{APIBaseURL: api.URL, CSRFKey: []byte(strings.Repeat("k", 32))}, logger)
	require.NoError(t, err)
	return tc
}

func (tc *testClient) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	tc.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (tc *testClient) post(t *testing.T, target, mode, fetchSite string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"mode": {mode}}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if fetchSite != "" {
		req.Header.Set("Sec-Fetch-Site", fetchSite)
	}
	w := httptest.NewRecorder()
	tc.handler.ServeHTTP(w, req)
	return w
}

func flash(t *testing.T, w *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query()
}

func TestIndexRendersReadyCategories(t *testing.T) {
	tc := newTestClient(t)

	w := tc.get(t, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Inhaler (asthma)")
	assert.Contains(t, body, "Substance use")
	assert.Contains(t, body, "Record Regular")
	assert.Contains(t, body, "No events yet.")
	assert.NotContains(t, body, "disabled")
	assert.NotContains(t, body, `value="emergency"`)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestIndexDisablesButtonDuringCooldown(t *testing.T) {
	tc := newTestClient(t)
	require.NoError(t, tc.store.Append(context.Background(), "Dados",
		eventlog.NewEvent(tc.now.Add(-7*time.Hour-30*time.Minute), eventlog.LabelRegular)))

	body := tc.get(t, "/").Body.String()

	assert.Contains(t, body, "Wait 0h 30m")
	assert.Contains(t, body, " disabled>")
	assert.Contains(t, body, `value="emergency"`)
	assert.Contains(t, body, "Last: 02:30 (7h ago)")
	assert.Contains(t, body, "Cooling down")
}

func TestRecordRegularThenCooldown(t *testing.T) {
	tc := newTestClient(t)

	q := flash(t, tc.post(t, "/record/inhaler", "regular", "same-origin"))
	assert.Equal(t, "Saved Regular for Inhaler (asthma) at 10:00", q.Get("message"))

	tc.now = tc.now.Add(time.Hour)
	q = flash(t, tc.post(t, "/record/inhaler", "regular", "same-origin"))
	assert.Equal(t, "Cooldown in effect, wait 7h 0m", q.Get("error"))

	q = flash(t, tc.post(t, "/record/inhaler", "emergency", "same-origin"))
	assert.Contains(t, q.Get("message"), "Saved Emergency")

	rows, err := tc.store.Rows(context.Background(), "Dados")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Emergency", rows[1].Status)
}

func TestRecordRejectsBadInput(t *testing.T) {
	tc := newTestClient(t)

	q := flash(t, tc.post(t, "/record/inhaler", "sideways", ""))
	assert.Equal(t, "Unknown record mode", q.Get("error"))

	q = flash(t, tc.post(t, "/record/coffee", "regular", ""))
	assert.Contains(t, q.Get("error"), "Unknown category")

	q = flash(t, tc.post(t, "/record/substance", "emergency", ""))
	assert.Contains(t, q.Get("error"), "no emergency override")
}

func TestRecordRejectsCrossSitePost(t *testing.T) {
	tc := newTestClient(t)

	w := tc.post(t, "/record/inhaler", "regular", "cross-site")

	assert.Equal(t, http.StatusForbidden, w.Code)
	rows, err := tc.store.Rows(context.Background(), "Dados")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIndexShowsErrorWhenAPIDown(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	api.Close()
	handler, err := NewHandler(Config{APIBaseURL: api.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Event log service unavailable")
}

func TestFlashFromQuery(t *testing.T) {
	tc := newTestClient(t)

	body := tc.get(t, "/?message=Saved+it").Body.String()

	assert.Contains(t, body, `<p class="flash flash-ok" role="status">Saved it</p>`)
}

func TestAppCSS(t *testing.T) {
	tc := newTestClient(t)

	w := tc.get(t, "/assets/app.css")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Cooldown in effect", capitalize("cooldown in effect"))
	assert.Equal(t, "Émergence", capitalize("émergence"))
	assert.Equal(t, "Ústí", capitalize("ústí"))
}
