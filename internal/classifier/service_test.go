package classifier

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eon-server/internal/utility"
)

type stubModel struct {
	logits []Logit
	err    error
}

func (m stubModel) Logits(context.Context, string) ([]Logit, error) {
	return m.logits, m.err
}

const testCodes = `[
  [{"code": "390-459", "descr": "Diseases of the circulatory system"},
   {"code": "410-414", "descr": "Ischemic heart disease"},
   {"code": "414", "descr": "Other forms of chronic ischemic heart disease"}],
  [{"code": "390-459", "descr": "Diseases of the circulatory system"},
   {"code": "401-405", "descr": "Hypertensive disease"},
   {"code": "401", "descr": "Essential hypertension"}],
  [{"code": "250", "descr": "Diabetes mellitus"}],
  [null, "junk", {"code": "", "descr": "no code"}]
]`

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := ReadIndex(strings.NewReader(testCodes))
	require.NoError(t, err)
	return idx
}

func readyService(t *testing.T, model Model) *Service {
	t.Helper()
	idx := testIndex(t)
	svc := NewService(func(context.Context) (Model, *Index, error) { return model, idx, nil }, nil, 0.3)
	require.NoError(t, svc.loadSync(context.Background()))
	return svc
}

func TestReadIndex(t *testing.T) {
	idx := testIndex(t)
	assert.Equal(t, 3, idx.Len())

	info, ok := idx.Lookup("414")
	require.True(t, ok)
	assert.Equal(t, "Other forms of chronic ischemic heart disease", info.Description)
	assert.Equal(t, "Diseases of the circulatory system > Ischemic heart disease > Other forms of chronic ischemic heart disease", info.FullHierarchy)
	require.NotNil(t, info.ParentCategory)
	assert.Equal(t, "Ischemic heart disease", *info.ParentCategory)

	info, ok = idx.Lookup("250")
	require.True(t, ok)
	assert.Nil(t, info.ParentCategory)

	_, ok = idx.Lookup("999")
	assert.False(t, ok)
}

func TestPredictBeforeLoadIsNotReady(t *testing.T) {
	svc := NewService(nil, nil, 0.3)
	assert.Equal(t, Unloaded, svc.State())

	_, err := svc.Predict(context.Background(), "chest pain")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStartLoadsOnceInBackground(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	svc := NewService(func(context.Context) (Model, *Index, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return stubModel{}, nil, nil
	}, nil, 0.3)

	svc.Start(context.Background())
	svc.Start(context.Background())
	assert.Equal(t, Loading, svc.State())

	_, err := svc.Predict(context.Background(), "chest pain")
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "still loading")

	close(release)
	assert.Eventually(t, func() bool { return svc.State() == Ready }, time.Second, 5*time.Millisecond)
	assert.NoError(t, svc.loadSync(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLoadFailureIsRecorded(t *testing.T) {
	svc := NewService(func(context.Context) (Model, *Index, error) {
		return nil, nil, errors.New("endpoint unreachable")
	}, nil, 0.3)

	err := svc.loadSync(context.Background())
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "endpoint unreachable")
	assert.Equal(t, Failed, svc.State())

	_, err = svc.Predict(context.Background(), "chest pain")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestPredictThresholdAndOrdering(t *testing.T) {
	svc := readyService(t, stubModel{logits: []Logit{
		{Label: "401", Score: 0.5},    // 0.62
		{Label: "414", Score: 2.0},    // 0.88
		{Label: "272", Score: -1.0},   // 0.27, below threshold
		{Label: "V7281", Score: 3.0},  // not a category code
		{Label: "250.00", Score: 1.0}, // 0.73, unknown to index
	}})

	res, err := svc.Predict(context.Background(), "chest pain on exertion")
	require.NoError(t, err)
	require.Len(t, res.Predictions, 3)

	assert.Equal(t, "414", res.Predictions[0].ICD9Code)
	assert.Equal(t, "250.00", res.Predictions[1].ICD9Code)
	assert.Equal(t, "401", res.Predictions[2].ICD9Code)
	assert.InDelta(t, 0.8808, res.Predictions[0].Probability, 1e-4)

	assert.Equal(t, unknownDescription, res.Predictions[1].Description)
	assert.Equal(t, unknownHierarchy, res.Predictions[1].FullHierarchy)

	assert.Len(t, res.Grouped["Ischemic heart disease"], 1)
	assert.Len(t, res.Grouped["Hypertensive disease"], 1)
	assert.Len(t, res.Grouped["Other"], 1)
	assert.Equal(t, "chest pain on exertion", res.InputText)
}

func TestPredictValidatesText(t *testing.T) {
	svc := readyService(t, stubModel{})
	_, err := svc.Predict(context.Background(), "   ")
	assert.ErrorIs(t, err, utility.ErrValidation)
}

func TestPredictSurfacesModelErrors(t *testing.T) {
	svc := readyService(t, stubModel{err: errors.New("boom")})
	_, err := svc.Predict(context.Background(), "text")
	assert.ErrorContains(t, err, "boom")
	assert.NotErrorIs(t, err, ErrNotReady)
}

func TestIsCategoryCode(t *testing.T) {
	assert.True(t, isCategoryCode("414"))
	assert.True(t, isCategoryCode("414.01"))
	assert.True(t, isCategoryCode("V70"))
	assert.False(t, isCategoryCode("4140"))
	assert.False(t, isCategoryCode("E8889"))
}
