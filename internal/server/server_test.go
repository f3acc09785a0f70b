package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"leadwatch/internal/ai"
	"leadwatch/internal/apify"
	"leadwatch/internal/monitor"
	"leadwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLeads struct {
	leads       []*store.Lead
	lastFilters store.Filters
	known       map[string]bool
	dismissed   []string
	total       int
	active      int
}

func (f *fakeLeads) List(_ context.Context, filters store.Filters) ([]*store.Lead, error) {
	f.lastFilters = filters
	return f.leads, nil
}

func (f *fakeLeads) Dismiss(_ context.Context, identity string) (bool, error) {
	if !f.known[identity] {
		return false, nil
	}
	f.dismissed = append(f.dismissed, identity)
	return true, nil
}

func (f *fakeLeads) Count(_ context.Context) (int, int, error) {
	return f.total, f.active, nil
}

func (f *fakeLeads) UpsertIfNew(_ context.Context, lead *store.Lead) (bool, error) {
	f.leads = append(f.leads, lead)
	return true, nil
}

type staticSearch struct {
	posts []*apify.Post
}

func (s *staticSearch) Search(_ context.Context, _ *apify.SearchParams) (*apify.Posts, error) {
	return &apify.Posts{Items: s.posts}, nil
}

type acceptAllClassifier struct{}

func (acceptAllClassifier) Classify(_ context.Context, _ *ai.Request) (*ai.Verdict, error) {
	return &ai.Verdict{Relevant: true, Rationale: "qualified"}, nil
}

func newTestServer(t *testing.T, leads *fakeLeads, posts []*apify.Post) *Server {
	t.Helper()

	runner := monitor.NewRunner(&staticSearch{posts: posts}, acceptAllClassifier{}, leads, zap.NewNop())
	scheduler := monitor.NewScheduler(runner, time.Hour, zap.NewNop())

	srv := New(leads, runner, scheduler, monitor.RunConfig{Keywords: []string{"PR agency"}}, zap.NewNop())
	t.Cleanup(func() {
		scheduler.Stop()
		scheduler.Wait()
	})

	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestListLeadsPassesFilters(t *testing.T) {
	leads := &fakeLeads{leads: []*store.Lead{{Identity: "1", AuthorName: "Jane"}}}
	srv := newTestServer(t, leads, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leads?keyword=PR+agency&job_title=Founder&industry=fintech&q=launch&include_dismissed=true&limit=10", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PR agency", leads.lastFilters.Keyword)
	assert.Equal(t, "Founder", leads.lastFilters.JobTitle)
	assert.Equal(t, "fintech", leads.lastFilters.Industry)
	assert.Equal(t, "launch", leads.lastFilters.FreeText)
	assert.True(t, leads.lastFilters.IncludeDismissed)
	assert.Equal(t, 10, leads.lastFilters.Limit)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Jane", body[0]["author_name"])
}

func TestListLeadsEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListLeadsRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismiss(t *testing.T) {
	leads := &fakeLeads{known: map[string]bool{"7294857203948572034": true}}
	srv := newTestServer(t, leads, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/7294857203948572034/dismiss", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"7294857203948572034"}, leads.dismissed)
}

func TestDismissEscapedIdentity(t *testing.T) {
	identity := "a lead key"
	leads := &fakeLeads{known: map[string]bool{identity: true}}
	srv := newTestServer(t, leads, nil)

	rec := httptest.NewRecorder()
	path := "/leads/" + url.PathEscape(identity) + "/dismiss"
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{identity}, leads.dismissed)
}

func TestDismissUnknownLead(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/leads/999/dismiss", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunEndpointReturnsSummary(t *testing.T) {
	posts := []*apify.Post{{
		ActivityID: "7294857203948572034",
		PostURL:    "https://www.linkedin.com/posts/x",
		Text:       "Looking for a PR agency",
		Author:     apify.Author{Name: "Jane", Headline: "Founder"},
	}}
	srv := newTestServer(t, &fakeLeads{}, posts)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary monitor.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.CandidatesFetched)
	assert.Equal(t, 1, summary.LeadsCreated)
}

func TestMonitoringLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitoring/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status monitor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, monitor.StateActive, status.State)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitoring/start", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitoring/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, monitor.StateIdle, body["state"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitoring/stop", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
}

func TestStatusReportsCounts(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{total: 5, active: 3}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["leads_total"])
	assert.Equal(t, float64(3), body["leads_active"])
	assert.NotNil(t, body["monitoring"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/leads", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsHandshake(t *testing.T) {
	srv := newTestServer(t, &fakeLeads{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"ping"`)
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe()
	hub.PublishEvent("lead_created", map[string]any{"identity": "7294857203948572034"})

	select {
	case msg := <-ch:
		assert.Contains(t, msg, `"type":"lead_created"`)
		assert.Contains(t, msg, "7294857203948572034")
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}

	hub.Unsubscribe(ch)
	hub.Publish("after unsubscribe")
}

func TestRunnerPublishesLeadEvents(t *testing.T) {
	posts := []*apify.Post{{
		ActivityID: "7294857203948572034",
		Text:       "Looking for a PR agency",
		Author:     apify.Author{Name: "Jane", Headline: "Founder"},
	}}
	leads := &fakeLeads{}
	srv := newTestServer(t, leads, posts)

	ch := srv.hub.Subscribe()
	defer srv.hub.Unsubscribe(ch)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case msg := <-ch:
		assert.Contains(t, msg, `"type":"lead_created"`)
		assert.Contains(t, msg, "Jane")
	case <-time.After(time.Second):
		t.Fatal("expected lead_created event")
	}
}
