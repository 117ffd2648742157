package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eon-server/internal/classifier"
	"eon-server/internal/database"
	"eon-server/internal/healthdata"
	"eon-server/internal/metrics"
	"eon-server/internal/recommendation"
	"eon-server/internal/risk"
	"eon-server/internal/utility"
)

type stubHealthData struct {
	synced []healthdata.SyncPayload
	notes  map[string][]database.UserNote
}

func (s *stubHealthData) Sync(_ context.Context, p healthdata.SyncPayload) (healthdata.SyncResult, error) {
	s.synced = append(s.synced, p)
	return healthdata.SyncResult{Message: "Data synced successfully", DeviceID: 1, ExternalID: p.DeviceInfo.DeviceID}, nil
}

func (s *stubHealthData) Onboard(ctx context.Context, p healthdata.SyncPayload) (healthdata.SyncResult, error) {
	return s.Sync(ctx, p)
}

func (s *stubHealthData) Latest(_ context.Context, id string) (healthdata.LatestMetrics, error) {
	if id != "dev-1" {
		return healthdata.LatestMetrics{}, fmt.Errorf("%w: %s", healthdata.ErrDeviceNotFound, id)
	}
	return healthdata.LatestMetrics{Device: database.Device{ID: 1, DeviceID: id}}, nil
}

func (s *stubHealthData) Metrics(_ context.Context, _, start, _ string) (healthdata.RawMetrics, error) {
	if start == "bad" {
		return healthdata.RawMetrics{}, fmt.Errorf("%w: invalid start_date", utility.ErrValidation)
	}
	return healthdata.RawMetrics{StartDate: start}, nil
}

func (s *stubHealthData) Summary(context.Context, string) (metrics.Overview, error) {
	return metrics.Overview{}, nil
}

func (s *stubHealthData) SyncStatus(context.Context, string) ([]database.SyncStatus, error) {
	return []database.SyncStatus{}, nil
}

func (s *stubHealthData) CreateNote(_ context.Context, id, note string) (database.UserNote, error) {
	n := database.UserNote{ID: int64(len(s.notes[id]) + 1), Note: note}
	s.notes[id] = append(s.notes[id], n)
	return n, nil
}

func (s *stubHealthData) ListNotes(_ context.Context, id string) ([]database.UserNote, error) {
	return s.notes[id], nil
}

type stubRisk struct{ err error }

func (s stubRisk) Analyze(_ context.Context, req risk.Request) (risk.Analysis, error) {
	if s.err != nil {
		return risk.Analysis{}, s.err
	}
	return risk.Analysis{UserID: req.UserID, AnalysisTextUsed: risk.TextSOAPNote}, nil
}

func (s stubRisk) Stored(_ context.Context, id string) (risk.Stored, error) {
	return risk.Stored{DeviceID: id, RecommendationCounts: map[string]int64{"Sleep": 2}}, nil
}

type stubRecommender struct{}

func (stubRecommender) Generate(_ context.Context, req recommendation.Request) (recommendation.Response, error) {
	return recommendation.Response{UserID: req.UserID}, nil
}

func (stubRecommender) ForDevice(_ context.Context, id string) (recommendation.Grouped, error) {
	return recommendation.Grouped{DeviceID: id}, nil
}

func (stubRecommender) SetAcceptance(_ context.Context, id int64, accepted bool) (database.Recommendation, error) {
	if id != 5 {
		return database.Recommendation{}, recommendation.ErrRecommendationNotFound
	}
	return database.Recommendation{ID: id, Accepted: accepted}, nil
}

type stubDB struct{ status string }

func (d stubDB) Health() map[string]string { return map[string]string{"status": d.status} }

type stubClassifier struct{ state classifier.State }

func (s stubClassifier) State() classifier.State { return s.state }

func (s stubClassifier) Ready() error {
	if s.state == classifier.Ready {
		return nil
	}
	return classifier.ErrNotReady
}

func newTestServer(t *testing.T, r RiskAnalyzer) (*httptest.Server, *stubHealthData, *Server) {
	t.Helper()
	hd := &stubHealthData{notes: map[string][]database.UserNote{}}
	if r == nil {
		r = stubRisk{}
	}
	app := New(0, Deps{
		DB:              stubDB{status: "up"},
		HealthData:      hd,
		Risk:            r,
		Recommendations: stubRecommender{},
		Classifier:      stubClassifier{state: classifier.Loading},
	})
	srv := httptest.NewServer(app.RegisterRoutes())
	t.Cleanup(srv.Close)
	return srv, hd, app
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSyncRoute(t *testing.T) {
	srv, hd, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/health/sync", `{"device_info": {"device_id": "dev-1"}, "heart_rate": []}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dev-1", body["external_device_id"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.Len(t, hd.synced, 1)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/health/sync", `{"heart_rate": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "validation failed")

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/health/onboard", `{"device_info": {"device_id": ""}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/health/sync", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _, _ := newTestServer(t, stubRisk{err: fmt.Errorf("%w: model is still loading", classifier.ErrNotReady)})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/health/devices/nope/latest", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "device not found")

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/health/devices/dev-1/metrics?start_date=bad", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/risk-analysis", `{"user_id": "dev-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "still loading")

	resp, body = do(t, http.MethodGet, srv.URL+"/no/such/route", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestNotesRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/notes/devices/dev-1/notes", `{"note": "Slept badly"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Slept badly", body["note"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/notes", `{"device_id": "dev-1", "note": "Headache"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/notes", `{"note": "orphan"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/notes?device_id=dev-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["notes"], 2)
}

func TestAcceptanceRoute(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodPut, srv.URL+"/api/recommendations/5/acceptance", `{"accepted": true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["accepted"])

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/recommendations/5/acceptance", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/recommendations/abc/acceptance", `{"accepted": true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/recommendations/9/acceptance", `{"accepted": false}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoredRiskRoute(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/risk-analysis/dev-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"Sleep": float64(2)}, body["recommendation_counts"])
}

func TestHealthRoute(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cls := body["classifier"].(map[string]any)
	assert.Equal(t, "loading", cls["state"])
	assert.Contains(t, body, "host")
}

func TestSyncPushesRefreshOverWebsocket(t *testing.T) {
	srv, _, app := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/dev-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return app.Hub.Connected("dev-1") }, time.Second, 5*time.Millisecond)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/health/sync", `{"device_info": {"device_id": "dev-1"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, utility.RefreshMessage, string(msg))
}
