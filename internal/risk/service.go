// Package risk runs the metrics → SOAP note → classifier → risk cluster pipeline and keeps
// the per-device cluster history.
package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eon-server/internal/classifier"
	"eon-server/internal/database"
	"eon-server/internal/geminiservice"
	"eon-server/internal/healthdata"
	"eon-server/internal/utility"
)

const (
	TextSOAPNote     = "SOAP Note"
	TextClinicalText = "Clinical Text"
)

// Store is the subset of *database.Queries this package uses.
type Store interface {
	GetRiskPrediction(ctx context.Context, arg database.GetRiskPredictionParams) (database.RiskAnalysisPrediction, error)
	CreateRiskPrediction(ctx context.Context, arg database.CreateRiskPredictionParams) error
	UpdateRiskPrediction(ctx context.Context, arg database.UpdateRiskPredictionParams) error
	ListRiskPredictions(ctx context.Context, deviceID int64) ([]database.RiskAnalysisPrediction, error)
	CountRecommendationsByCategory(ctx context.Context, deviceID int64) ([]database.CountRecommendationsByCategoryRow, error)
}

var _ Store = (*database.Queries)(nil)

// Patients provides device lookup and the data fed into the note generator.
type Patients interface {
	ResolveDevice(ctx context.Context, externalID string) (database.Device, error)
	PatientContext(ctx context.Context, externalID string) (healthdata.PatientContext, error)
}

type Classifier interface {
	Ready() error
	Predict(ctx context.Context, text string) (classifier.Result, error)
}

// Generator is the language-model side of the pipeline.
type Generator interface {
	GenerateSOAPNote(ctx context.Context, log *zerolog.Logger, inputText string) (string, error)
	FormatPredictions(ctx context.Context, log *zerolog.Logger, in geminiservice.RiskInput) ([]geminiservice.RiskCluster, error)
}

// Request selects the full device pipeline (UserID) or plain text classification (Prompt).
type Request struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
}

// Analysis is the pipeline output including its intermediate artifacts.
type Analysis struct {
	UserID               string                             `json:"user_id,omitempty"`
	AnalysisTextUsed     string                             `json:"analysis_text_used"`
	InputText            string                             `json:"input_text"`
	MetricsSummary       string                             `json:"metrics_summary,omitempty"`
	SoapNote             string                             `json:"soap_note,omitempty"`
	Predictions          []classifier.Prediction            `json:"predictions"`
	GroupedPredictions   map[string][]classifier.Prediction `json:"grouped_predictions"`
	FormattedPredictions []geminiservice.RiskCluster        `json:"formatted_predictions,omitempty"`
}

type Service struct {
	store      Store
	patients   Patients
	classifier Classifier
	generator  Generator
	now        func() time.Time
}

func NewService(store Store, patients Patients, cls Classifier, gen Generator, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, patients: patients, classifier: cls, generator: gen, now: now}
}

// Analyze runs the pipeline for req. With a UserID the clusters are merged into storage.
func (s *Service) Analyze(ctx context.Context, req Request) (Analysis, error) {
	userID := strings.TrimSpace(req.UserID)
	prompt := strings.TrimSpace(req.Prompt)
	switch {
	case userID != "":
		return s.analyzeDevice(ctx, userID)
	case prompt != "":
		return s.classifyText(ctx, prompt)
	}
	return Analysis{}, fmt.Errorf("%w: either user_id or prompt is required", utility.ErrValidation)
}

func (s *Service) classifyText(ctx context.Context, text string) (Analysis, error) {
	res, err := s.classifier.Predict(ctx, text)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		AnalysisTextUsed:   TextClinicalText,
		InputText:          res.InputText,
		Predictions:        res.Predictions,
		GroupedPredictions: res.Grouped,
	}, nil
}

func (s *Service) analyzeDevice(ctx context.Context, externalID string) (Analysis, error) {
	logger := zerolog.Ctx(ctx).With().Str("device_id", externalID).Logger()

	// Fail fast before spending a model call on a note nobody can classify.
	if err := s.classifier.Ready(); err != nil {
		return Analysis{}, err
	}

	pc, err := s.patients.PatientContext(ctx, externalID)
	if err != nil {
		return Analysis{}, err
	}

	metricsText := pc.Overview.Text()
	inputText := metricsText + "\n\nUser notes:\n" + healthdata.FormatNotes(pc.Notes)

	logger.Info().Msg("Generating SOAP note")
	note, err := s.generator.GenerateSOAPNote(ctx, &logger, inputText)
	if err != nil {
		return Analysis{}, err
	}

	res, err := s.classifier.Predict(ctx, note)
	if err != nil {
		return Analysis{}, err
	}
	logger.Info().Int("predictions", len(res.Predictions)).Msg("Classified SOAP note")

	clusters, err := s.generator.FormatPredictions(ctx, &logger, geminiservice.RiskInput{
		AnalysisTextUsed: TextSOAPNote,
		InputText:        inputText,
		MetricsSummary:   metricsText,
		Predictions:      res.Predictions,
		SoapNote:         note,
	})
	if err != nil {
		return Analysis{}, err
	}

	if err := s.StoreClusters(ctx, pc.Device.ID, clusters); err != nil {
		return Analysis{}, err
	}

	return Analysis{
		UserID:               externalID,
		AnalysisTextUsed:     TextSOAPNote,
		InputText:            inputText,
		MetricsSummary:       metricsText,
		SoapNote:             note,
		Predictions:          res.Predictions,
		GroupedPredictions:   res.Grouped,
		FormattedPredictions: clusters,
	}, nil
}

// StoreClusters merges clusters into the device's stored rows, one row per cluster name.
// Disease lists are unioned by code and the risk level, explanation and timestamp are replaced.
func (s *Service) StoreClusters(ctx context.Context, deviceID int64, clusters []geminiservice.RiskCluster) error {
	at := utility.Timestamptz(s.now().UTC())
	for _, c := range clusters {
		existing, err := s.store.GetRiskPrediction(ctx, database.GetRiskPredictionParams{
			DeviceID:    deviceID,
			ClusterName: c.ClusterName,
		})
		found := err == nil
		if err := ignoreNoRows(err); err != nil {
			return fmt.Errorf("get risk cluster %q: %w", c.ClusterName, err)
		}

		diseases := c.Diseases
		if found {
			stored, err := decodeDiseases(existing.Diseases)
			if err != nil {
				return fmt.Errorf("decode stored diseases for %q: %w", c.ClusterName, err)
			}
			diseases = geminiservice.MergeDiseases(stored, c.Diseases)
		}
		encoded, err := encodeDiseases(diseases)
		if err != nil {
			return err
		}

		if found {
			err = s.store.UpdateRiskPrediction(ctx, database.UpdateRiskPredictionParams{
				ID:          existing.ID,
				RiskLevel:   c.RiskLevel,
				Explanation: c.Explanation,
				Diseases:    encoded,
				CreatedAt:   at,
			})
		} else {
			err = s.store.CreateRiskPrediction(ctx, database.CreateRiskPredictionParams{
				DeviceID:    deviceID,
				ClusterName: c.ClusterName,
				RiskLevel:   c.RiskLevel,
				Explanation: c.Explanation,
				Diseases:    encoded,
				CreatedAt:   at,
			})
		}
		if err != nil {
			return fmt.Errorf("store risk cluster %q: %w", c.ClusterName, err)
		}
	}
	log.Info().Int64("device", deviceID).Int("clusters", len(clusters)).Msg("Risk clusters stored")
	return nil
}
