package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/onboarding"
	"github.com/kdimtricp/anilights/internal/recommend"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/taste"
)

type recommenderFunc func(ctx context.Context, picks []int) ([]models.Recommendation, error)

func (f recommenderFunc) Recommend(ctx context.Context, picks []int) ([]models.Recommendation, error) {
	return f(ctx, picks)
}

type memorySubmissions struct {
	mu   sync.Mutex
	rows []database.Submission
}

func (m *memorySubmissions) Record(_ context.Context, s *database.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memorySubmissions) all() []database.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Submission(nil), m.rows...)
}

// testCatalog: Action 11-13, Fantasy 41-42, Comedy 21-27, Drama 31, Mystery 51-56.
func testCatalog() []models.CatalogItem {
	var items []models.CatalogItem
	add := func(genre string, ids ...int) {
		for _, id := range ids {
			items = append(items, models.CatalogItem{ID: id, Title: genre, Genres: []string{genre}})
		}
	}
	add("Action", 11, 12, 13)
	add("Fantasy", 41, 42)
	add("Comedy", 21, 22, 23, 24, 25, 26, 27)
	add("Drama", 31)
	add("Mystery", 51, 52, 53, 54, 55, 56)
	return items
}

type testServer struct {
	handler     http.Handler
	submissions *memorySubmissions
}

func newTestServer(t *testing.T, rec recommend.Recommender) *testServer {
	t.Helper()

	classifier, err := taste.NewClassifier(taste.DefaultCategories, taste.DefaultScoreTable())
	require.NoError(t, err)

	// No-op shuffle: every display set is the first items in catalog order.
	sampler := sampling.NewSampler(func(int, func(i, j int)) {})
	manager := onboarding.NewManager(classifier.Classify(testCatalog()), sampler, onboarding.Config{})

	subs := &memorySubmissions{}
	app := &App{Sessions: manager, Recommender: rec, Submissions: subs}
	return &testServer{handler: NewRouter(app), submissions: subs}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) sessionState {
	t.Helper()
	var st sessionState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st), rr.Body.String())
	return st
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e
}

func optionIDs(st sessionState) []int {
	ids := make([]int, len(st.Options))
	for i, o := range st.Options {
		ids[i] = o.ID
	}
	return ids
}

func (ts *testServer) create(t *testing.T) sessionState {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeState(t, rr)
}

func (ts *testServer) pick(t *testing.T, id string, item int) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]int{"itemId": item})
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, "/api/sessions/"+id+"/picks", string(body))
}

// completeSession picks the first option of every round.
func (ts *testServer) completeSession(t *testing.T) (sessionState, []int) {
	t.Helper()
	st := ts.create(t)
	var picks []int
	for !st.Complete {
		require.NotEmpty(t, st.Options)
		rr := ts.pick(t, st.ID, st.Options[0].ID)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		picks = append(picks, st.Options[0].ID)
		st = decodeState(t, rr)
	}
	return st, picks
}

func noRecommender(t *testing.T) recommend.Recommender {
	return recommenderFunc(func(context.Context, []int) ([]models.Recommendation, error) {
		t.Error("recommender must not be called")
		return nil, nil
	})
}

func TestPingHandler(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	rr := ts.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestListCategoriesHandler(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	rr := ts.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Categories []categoryResponse `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Categories, 5)
	assert.Equal(t, "Action & Adventure", body.Categories[0].Name)
	assert.Equal(t, []int{3, 2, 7, 1, 6}, []int{
		body.Categories[0].Items, body.Categories[1].Items, body.Categories[2].Items,
		body.Categories[3].Items, body.Categories[4].Items,
	})
}

func TestCreateAndGetSession(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))

	st := ts.create(t)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, 0, st.Step)
	assert.Equal(t, 5, st.Total)
	assert.False(t, st.Complete)
	assert.Equal(t, "Action & Adventure", st.Category)
	assert.Equal(t, []int{11, 12, 13}, optionIDs(st))
	assert.Empty(t, st.Picks)

	rr := ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	again := decodeState(t, rr)
	assert.Equal(t, optionIDs(st), optionIDs(again), "the display set is cached")
}

func TestPickHandler(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	st := ts.create(t)

	rr := ts.pick(t, st.ID, 12)
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeState(t, rr)
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, []int{12}, st.Picks)
	assert.Equal(t, "Fantasy & Supernatural", st.Category)
	assert.Equal(t, []int{41, 42}, optionIDs(st))
}

func TestPickHandler_Errors(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	st := ts.create(t)
	path := "/api/sessions/" + st.ID + "/picks"

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not offered", `{"itemId": 41}`, http.StatusUnprocessableEntity},
		{"unknown item", `{"itemId": 999}`, http.StatusUnprocessableEntity},
		{"missing item", `{}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown field", `{"itemId": 11, "extra": true}`, http.StatusBadRequest},
		{"malformed", `{"itemId":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decodeError(t, rr).Error)
		})
	}

	rr := ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	after := decodeState(t, rr)
	assert.Equal(t, 0, after.Step, "failed picks leave the session untouched")
	assert.Equal(t, optionIDs(st), optionIDs(after))
}

func TestNavigationHandlers(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	st := ts.create(t)
	base := "/api/sessions/" + st.ID

	rr := ts.do(t, http.MethodPost, base+"/back", "")
	assert.Equal(t, http.StatusConflict, rr.Code, "back at the first step")

	require.Equal(t, http.StatusOK, ts.pick(t, st.ID, 11).Code)
	require.Equal(t, http.StatusOK, ts.pick(t, st.ID, 42).Code)
	require.Equal(t, http.StatusOK, ts.pick(t, st.ID, 21).Code)

	rr = ts.do(t, http.MethodPost, base+"/jump", `{"step": 3}`)
	assert.Equal(t, http.StatusConflict, rr.Code, "jump to the current step")

	rr = ts.do(t, http.MethodPost, base+"/jump", `{"step": -1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, base+"/jump", `{"step": 1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeState(t, rr)
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, []int{11}, st.Picks)

	rr = ts.do(t, http.MethodPost, base+"/back", "")
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeState(t, rr)
	assert.Equal(t, 0, st.Step)
	assert.Empty(t, st.Picks)

	require.Equal(t, http.StatusOK, ts.pick(t, st.ID, 13).Code)
	rr = ts.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	st = decodeState(t, rr)
	assert.Equal(t, 0, st.Step)
	assert.Empty(t, st.Picks)
	assert.Equal(t, []int{11, 12, 13}, optionIDs(st))
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/sessions/nope", ""},
		{http.MethodPost, "/api/sessions/nope/picks", `{"itemId": 1}`},
		{http.MethodPost, "/api/sessions/nope/back", ""},
		{http.MethodPost, "/api/sessions/nope/submit", ""},
		{http.MethodDelete, "/api/sessions/nope", ""},
	} {
		rr := ts.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, rr.Code, tc.method+" "+tc.path)
	}
}

func TestDeleteSessionHandler(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	st := ts.create(t)

	rr := ts.do(t, http.MethodDelete, "/api/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubmitHandler_Incomplete(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))
	st := ts.create(t)

	rr := ts.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/submit", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, ts.submissions.all())
}

func TestSubmitHandler_Delivered(t *testing.T) {
	var got []int
	ts := newTestServer(t, recommenderFunc(func(_ context.Context, picks []int) ([]models.Recommendation, error) {
		got = picks
		return []models.Recommendation{
			{ID: 5114, Title: "Fullmetal Alchemist: Brotherhood", MatchScore: 0.9},
		}, nil
	}))

	st, picks := ts.completeSession(t)
	assert.Equal(t, []int{11, 41, 21, 31, 51}, picks)
	assert.True(t, st.Complete)
	assert.Empty(t, st.Category)
	assert.Empty(t, st.Options)

	rr := ts.pick(t, st.ID, 11)
	assert.Equal(t, http.StatusConflict, rr.Code, "no picks after completion")

	rr = ts.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/submit", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body submitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, 5114, body.Recommendations[0].ID)
	assert.Equal(t, picks, got)

	rr = ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "delivered sessions are discarded")

	rows := ts.submissions.all()
	require.Len(t, rows, 1)
	assert.Equal(t, st.ID, rows[0].SessionID)
	assert.Equal(t, "delivered", rows[0].Outcome)
	assert.Equal(t, picks, rows[0].Picks)
	assert.Equal(t, 1, rows[0].ResultCount)
}

func TestSubmitHandler_UpstreamFailureReopens(t *testing.T) {
	ts := newTestServer(t, recommenderFunc(func(context.Context, []int) ([]models.Recommendation, error) {
		return nil, &recommend.UpstreamError{Status: 500, Message: "model not loaded"}
	}))

	st, _ := ts.completeSession(t)

	rr := ts.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/submit", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)

	resp := decodeError(t, rr)
	assert.Contains(t, resp.Error, "model not loaded")
	require.NotNil(t, resp.Session)
	assert.Equal(t, 4, resp.Session.Step)
	assert.False(t, resp.Session.Complete)
	assert.Equal(t, "Mystery & Suspense", resp.Session.Category)
	assert.Equal(t, []int{11, 41, 21, 31}, resp.Session.Picks)

	rr = ts.pick(t, st.ID, 52)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeState(t, rr).Complete)

	rows := ts.submissions.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Outcome)
	assert.Contains(t, rows[0].Error, "model not loaded")
}

func TestSubmitHandler_PendingFreezesSession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ts := newTestServer(t, recommenderFunc(func(context.Context, []int) ([]models.Recommendation, error) {
		close(started)
		<-release
		return []models.Recommendation{}, nil
	}))

	st, _ := ts.completeSession(t)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- ts.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/submit", "")
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("recommender was not called")
	}

	rr := ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeState(t, rr).Pending)

	for _, path := range []string{"/reset", "/back", "/submit"} {
		rr = ts.do(t, http.MethodPost, "/api/sessions/"+st.ID+path, "")
		assert.Equal(t, http.StatusConflict, rr.Code, path)
		assert.Contains(t, decodeError(t, rr).Error, "submission in progress")
	}

	rr = ts.do(t, http.MethodDelete, "/api/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusConflict, rr.Code, "a frozen session cannot be deleted")
	assert.Contains(t, decodeError(t, rr).Error, "submission in progress")

	close(release)
	rr = <-done
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recommendations":[]}`, rr.Body.String())
}

func TestSubmitHandler_ClientGone(t *testing.T) {
	ts := newTestServer(t, recommenderFunc(func(ctx context.Context, _ []int) ([]models.Recommendation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	st, _ := ts.completeSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+st.ID+"/submit", nil).WithContext(ctx)
	cancel()
	ts.handler.ServeHTTP(httptest.NewRecorder(), req)

	rr := ts.do(t, http.MethodGet, "/api/sessions/"+st.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	after := decodeState(t, rr)
	assert.True(t, after.Complete, "abandoned submissions keep the session complete")
	assert.False(t, after.Pending)

	rows := ts.submissions.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "abandoned", rows[0].Outcome)
}

func TestCORSAndMetrics(t *testing.T) {
	ts := newTestServer(t, noRecommender(t))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "onboarding_sessions_created_total")
}
