package risk

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eon-server/internal/classifier"
	"eon-server/internal/database"
	"eon-server/internal/geminiservice"
	"eon-server/internal/healthdata"
	"eon-server/internal/metrics"
	"eon-server/internal/utility"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type memStore struct {
	rows   []database.RiskAnalysisPrediction
	counts []database.CountRecommendationsByCategoryRow
	nextID int64
}

func (m *memStore) GetRiskPrediction(_ context.Context, arg database.GetRiskPredictionParams) (database.RiskAnalysisPrediction, error) {
	for _, r := range m.rows {
		if r.DeviceID == arg.DeviceID && r.ClusterName == arg.ClusterName {
			return r, nil
		}
	}
	return database.RiskAnalysisPrediction{}, pgx.ErrNoRows
}

func (m *memStore) CreateRiskPrediction(_ context.Context, arg database.CreateRiskPredictionParams) error {
	m.nextID++
	m.rows = append(m.rows, database.RiskAnalysisPrediction{
		ID: m.nextID, DeviceID: arg.DeviceID, ClusterName: arg.ClusterName, RiskLevel: arg.RiskLevel,
		Explanation: arg.Explanation, Diseases: arg.Diseases, CreatedAt: arg.CreatedAt,
	})
	return nil
}

func (m *memStore) UpdateRiskPrediction(_ context.Context, arg database.UpdateRiskPredictionParams) error {
	for i := range m.rows {
		if m.rows[i].ID == arg.ID {
			m.rows[i].RiskLevel = arg.RiskLevel
			m.rows[i].Explanation = arg.Explanation
			m.rows[i].Diseases = arg.Diseases
			m.rows[i].CreatedAt = arg.CreatedAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) ListRiskPredictions(_ context.Context, deviceID int64) ([]database.RiskAnalysisPrediction, error) {
	out := []database.RiskAnalysisPrediction{}
	for _, r := range m.rows {
		if r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CountRecommendationsByCategory(context.Context, int64) ([]database.CountRecommendationsByCategoryRow, error) {
	return m.counts, nil
}

type fakePatients struct{}

func (fakePatients) ResolveDevice(_ context.Context, externalID string) (database.Device, error) {
	if externalID != "dev-1" {
		return database.Device{}, healthdata.ErrDeviceNotFound
	}
	return database.Device{ID: 7, DeviceID: "dev-1"}, nil
}

func (p fakePatients) PatientContext(ctx context.Context, externalID string) (healthdata.PatientContext, error) {
	device, err := p.ResolveDevice(ctx, externalID)
	if err != nil {
		return healthdata.PatientContext{}, err
	}
	return healthdata.PatientContext{
		Device: device,
		Overview: metrics.Overview{
			HeartRate: metrics.Summary{Today: metrics.NumberValue(72)},
		},
		Notes: []database.UserNote{{Note: "Felt dizzy", CreatedAt: utility.Timestamptz(testNow)}},
	}, nil
}

type fakeClassifier struct {
	ready     error
	lastText  string
	predicted []classifier.Prediction
}

func (f *fakeClassifier) Ready() error { return f.ready }

func (f *fakeClassifier) Predict(_ context.Context, text string) (classifier.Result, error) {
	if f.ready != nil {
		return classifier.Result{}, f.ready
	}
	f.lastText = text
	return classifier.Result{
		Predictions: f.predicted,
		Grouped:     classifier.GroupByParent(f.predicted),
		InputText:   text,
	}, nil
}

type fakeGenerator struct {
	soapCalls int
	riskInput geminiservice.RiskInput
	clusters  []geminiservice.RiskCluster
}

func (g *fakeGenerator) GenerateSOAPNote(_ context.Context, _ *zerolog.Logger, input string) (string, error) {
	g.soapCalls++
	return "S: dizzy. O: HR 72.", nil
}

func (g *fakeGenerator) FormatPredictions(_ context.Context, _ *zerolog.Logger, in geminiservice.RiskInput) ([]geminiservice.RiskCluster, error) {
	g.riskInput = in
	return g.clusters, nil
}

func cardio(codes ...string) geminiservice.RiskCluster {
	c := geminiservice.RiskCluster{ClusterName: geminiservice.ClusterCardiovascular, RiskLevel: geminiservice.RiskModerate, Explanation: "e"}
	for _, code := range codes {
		c.Diseases = append(c.Diseases, geminiservice.Disease{Description: "d" + code, ICD9Code: code})
	}
	return c
}

func newTestService(store *memStore, cls *fakeClassifier, gen *fakeGenerator) *Service {
	return NewService(store, fakePatients{}, cls, gen, func() time.Time { return testNow })
}

func TestStoreClustersMergesByCode(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, &fakeClassifier{}, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, svc.StoreClusters(ctx, 7, []geminiservice.RiskCluster{cardio("414")}))
	second := cardio("414", "401")
	second.RiskLevel = geminiservice.RiskHigh
	require.NoError(t, svc.StoreClusters(ctx, 7, []geminiservice.RiskCluster{second}))

	require.Len(t, store.rows, 1)
	assert.Equal(t, geminiservice.RiskHigh, store.rows[0].RiskLevel)

	var diseases []geminiservice.Disease
	require.NoError(t, json.Unmarshal(store.rows[0].Diseases, &diseases))
	assert.Equal(t, []geminiservice.Disease{
		{Description: "d414", ICD9Code: "414"},
		{Description: "d401", ICD9Code: "401"},
	}, diseases)
}

func TestStoreClustersKeepsUnreadableRow(t *testing.T) {
	original := []byte(`{"icd9_code":"414","description":"d414"}`)
	store := &memStore{rows: []database.RiskAnalysisPrediction{{
		ID: 1, DeviceID: 7, ClusterName: geminiservice.ClusterCardiovascular,
		RiskLevel: geminiservice.RiskLow, Diseases: original,
	}}}
	svc := newTestService(store, &fakeClassifier{}, &fakeGenerator{})

	err := svc.StoreClusters(context.Background(), 7, []geminiservice.RiskCluster{cardio("401")})
	require.Error(t, err)

	require.Len(t, store.rows, 1)
	assert.Equal(t, original, store.rows[0].Diseases)
	assert.Equal(t, geminiservice.RiskLow, store.rows[0].RiskLevel)
}

func TestAnalyzeDevicePipeline(t *testing.T) {
	store := &memStore{}
	cls := &fakeClassifier{predicted: []classifier.Prediction{{ICD9Code: "414", Probability: 0.9}}}
	gen := &fakeGenerator{clusters: []geminiservice.RiskCluster{cardio("414")}}
	svc := newTestService(store, cls, gen)

	out, err := svc.Analyze(context.Background(), Request{UserID: "dev-1"})
	require.NoError(t, err)

	assert.Equal(t, TextSOAPNote, out.AnalysisTextUsed)
	assert.Equal(t, "S: dizzy. O: HR 72.", out.SoapNote)
	assert.Equal(t, out.SoapNote, cls.lastText)
	assert.Contains(t, out.InputText, "Cardiovascular metrics:")
	assert.Contains(t, out.InputText, "2024-06-15 12:00:00 UTC: Felt dizzy")
	assert.Equal(t, out.MetricsSummary, gen.riskInput.MetricsSummary)
	assert.Len(t, gen.riskInput.Predictions, 1)
	assert.Len(t, out.FormattedPredictions, 1)
	assert.Len(t, store.rows, 1)
	assert.EqualValues(t, 7, store.rows[0].DeviceID)
}

func TestAnalyzeChecksClassifierBeforeGenerating(t *testing.T) {
	gen := &fakeGenerator{}
	cls := &fakeClassifier{ready: classifier.ErrNotReady}
	svc := newTestService(&memStore{}, cls, gen)

	_, err := svc.Analyze(context.Background(), Request{UserID: "dev-1"})
	assert.ErrorIs(t, err, classifier.ErrNotReady)
	assert.Zero(t, gen.soapCalls)
}

func TestAnalyzePromptOnlyClassifies(t *testing.T) {
	store := &memStore{}
	cls := &fakeClassifier{predicted: []classifier.Prediction{{ICD9Code: "786", Probability: 0.5}}}
	gen := &fakeGenerator{}
	svc := newTestService(store, cls, gen)

	out, err := svc.Analyze(context.Background(), Request{Prompt: "chest pain"})
	require.NoError(t, err)
	assert.Equal(t, TextClinicalText, out.AnalysisTextUsed)
	assert.Equal(t, "chest pain", out.InputText)
	assert.Len(t, out.GroupedPredictions["Other"], 1)
	assert.Zero(t, gen.soapCalls)
	assert.Empty(t, store.rows)
}

func TestAnalyzeValidation(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeClassifier{}, &fakeGenerator{})
	_, err := svc.Analyze(context.Background(), Request{})
	assert.ErrorIs(t, err, utility.ErrValidation)

	_, err = svc.Analyze(context.Background(), Request{UserID: "unknown"})
	assert.True(t, errors.Is(err, utility.ErrNotFound))
}

func TestStoredIncludesCounts(t *testing.T) {
	store := &memStore{counts: []database.CountRecommendationsByCategoryRow{{Category: geminiservice.CategorySleep, Total: 3}}}
	svc := newTestService(store, &fakeClassifier{}, &fakeGenerator{})
	require.NoError(t, svc.StoreClusters(context.Background(), 7, []geminiservice.RiskCluster{cardio("414")}))

	out, err := svc.Stored(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", out.DeviceID)
	require.Len(t, out.Clusters, 1)
	assert.Equal(t, "414", out.Clusters[0].Diseases[0].ICD9Code)
	assert.Equal(t, testNow, *out.Clusters[0].UpdatedAt)
	assert.Equal(t, map[string]int64{"Sleep": 3, "Steps": 0, "Heart_Rate": 0}, out.RecommendationCounts)
}
