// Package recommendation generates lifestyle recommendations from a risk analysis and
// tracks which ones the user accepted.
package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eon-server/internal/database"
	"eon-server/internal/geminiservice"
	"eon-server/internal/risk"
	"eon-server/internal/utility"
)

var ErrRecommendationNotFound = fmt.Errorf("recommendation %w", utility.ErrNotFound)

// Store is the subset of *database.Queries this package uses.
type Store interface {
	ListRecommendations(ctx context.Context, deviceID int64) ([]database.Recommendation, error)
	DeleteUnacceptedRecommendations(ctx context.Context, deviceID int64) (int64, error)
	CreateRecommendation(ctx context.Context, arg database.CreateRecommendationParams) (database.Recommendation, error)
	SetRecommendationAcceptance(ctx context.Context, arg database.SetRecommendationAcceptanceParams) (database.Recommendation, error)
}

var _ Store = (*database.Queries)(nil)

type Devices interface {
	ResolveDevice(ctx context.Context, externalID string) (database.Device, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req risk.Request) (risk.Analysis, error)
}

type Generator interface {
	GenerateRecommendations(ctx context.Context, log *zerolog.Logger, in geminiservice.RecommendationInput) (geminiservice.RecommendationSet, error)
}

// Request runs the risk pipeline for UserID, or uses the provided note and clusters directly.
type Request struct {
	UserID               string                      `json:"user_id"`
	SoapNote             string                      `json:"soap_note"`
	FormattedPredictions []geminiservice.RiskCluster `json:"formatted_predictions"`
}

type SourceData struct {
	SoapNote             string                      `json:"soap_note"`
	FormattedPredictions []geminiservice.RiskCluster `json:"formatted_predictions"`
}

// Regenerated reports what a regeneration changed in storage.
type Regenerated struct {
	Deleted  int64 `json:"deleted"`
	Inserted int   `json:"inserted"`
	Skipped  int   `json:"skipped_duplicates"`
}

type Response struct {
	Recommendations geminiservice.RecommendationSet `json:"recommendations"`
	SourceData      SourceData                      `json:"source_data"`
	UserID          string                          `json:"user_id,omitempty"`
	Stored          *Regenerated                    `json:"stored,omitempty"`
}

type Service struct {
	store     Store
	devices   Devices
	analyzer  Analyzer
	generator Generator
}

func NewService(store Store, devices Devices, analyzer Analyzer, gen Generator) *Service {
	return &Service{store: store, devices: devices, analyzer: analyzer, generator: gen}
}

// Generate produces recommendations. For a device the unaccepted ones are replaced in storage.
func (s *Service) Generate(ctx context.Context, req Request) (Response, error) {
	logger := zerolog.Ctx(ctx)
	userID := strings.TrimSpace(req.UserID)

	soap, clusters := req.SoapNote, req.FormattedPredictions
	var (
		device database.Device
		past   []geminiservice.PastRecommendation
	)
	if userID != "" {
		analysis, err := s.analyzer.Analyze(ctx, risk.Request{UserID: userID})
		if err != nil {
			return Response{}, err
		}
		soap, clusters = analysis.SoapNote, analysis.FormattedPredictions

		device, err = s.devices.ResolveDevice(ctx, userID)
		if err != nil {
			return Response{}, err
		}
		rows, err := s.store.ListRecommendations(ctx, device.ID)
		if err != nil {
			return Response{}, fmt.Errorf("list recommendations: %w", err)
		}
		for _, r := range rows {
			past = append(past, geminiservice.PastRecommendation{
				Category:       r.Category,
				Recommendation: r.Recommendation,
				Accepted:       r.Accepted,
			})
		}
	}

	if strings.TrimSpace(soap) == "" || len(clusters) == 0 {
		return Response{}, fmt.Errorf("%w: missing required data, provide user_id or both soap_note and formatted_predictions", utility.ErrValidation)
	}

	set, err := s.generator.GenerateRecommendations(ctx, logger, geminiservice.RecommendationInput{
		SoapNote:             soap,
		FormattedPredictions: clusters,
		Past:                 past,
	})
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Recommendations: set,
		SourceData:      SourceData{SoapNote: soap, FormattedPredictions: clusters},
	}
	if userID != "" {
		stored, err := s.Regenerate(ctx, device.ID, set)
		if err != nil {
			return Response{}, err
		}
		resp.UserID = userID
		resp.Stored = &stored
	}
	return resp, nil
}

func dedupKey(category, text string) string {
	return category + "\x00" + strings.TrimSpace(text)
}

// Regenerate deletes the device's unaccepted recommendations and inserts set, skipping items
// whose category and exact text match an accepted recommendation or an earlier item of set.
func (s *Service) Regenerate(ctx context.Context, deviceID int64, set geminiservice.RecommendationSet) (Regenerated, error) {
	existing, err := s.store.ListRecommendations(ctx, deviceID)
	if err != nil {
		return Regenerated{}, fmt.Errorf("list recommendations: %w", err)
	}
	seen := map[string]bool{}
	for _, r := range existing {
		if r.Accepted {
			seen[dedupKey(r.Category, r.Recommendation)] = true
		}
	}

	var out Regenerated
	out.Deleted, err = s.store.DeleteUnacceptedRecommendations(ctx, deviceID)
	if err != nil {
		return Regenerated{}, fmt.Errorf("delete unaccepted recommendations: %w", err)
	}

	for _, category := range geminiservice.Categories {
		for _, item := range set.ByCategory(category) {
			key := dedupKey(category, item.Recommendation)
			if seen[key] {
				out.Skipped++
				continue
			}
			seen[key] = true
			if _, err := s.store.CreateRecommendation(ctx, database.CreateRecommendationParams{
				DeviceID:       deviceID,
				Category:       category,
				Recommendation: strings.TrimSpace(item.Recommendation),
				Explanation:    item.Explanation,
				Frequency:      item.Frequency,
			}); err != nil {
				return Regenerated{}, fmt.Errorf("create recommendation: %w", err)
			}
			out.Inserted++
		}
	}

	log.Info().
		Int64("device", deviceID).
		Int64("deleted", out.Deleted).
		Int("inserted", out.Inserted).
		Int("skipped", out.Skipped).
		Msg("Recommendations regenerated")
	return out, nil
}

// Item is a stored recommendation as returned to clients.
type Item struct {
	ID             int64      `json:"id"`
	Recommendation string     `json:"recommendation"`
	Explanation    string     `json:"explanation"`
	Frequency      string     `json:"frequency"`
	CreatedAt      *time.Time `json:"created_at"`
}

// Grouped holds a device's recommendations split by acceptance, then category.
type Grouped struct {
	DeviceID   string            `json:"device_id"`
	Accepted   map[string][]Item `json:"accepted"`
	Unaccepted map[string][]Item `json:"unaccepted"`
}

func emptyBuckets() map[string][]Item {
	m := make(map[string][]Item, len(geminiservice.Categories))
	for _, c := range geminiservice.Categories {
		m[c] = []Item{}
	}
	return m
}

// ForDevice returns the device's recommendations grouped by acceptance and category, newest first.
func (s *Service) ForDevice(ctx context.Context, externalID string) (Grouped, error) {
	device, err := s.devices.ResolveDevice(ctx, externalID)
	if err != nil {
		return Grouped{}, err
	}
	rows, err := s.store.ListRecommendations(ctx, device.ID)
	if err != nil {
		return Grouped{}, fmt.Errorf("list recommendations: %w", err)
	}

	out := Grouped{DeviceID: device.DeviceID, Accepted: emptyBuckets(), Unaccepted: emptyBuckets()}
	for _, r := range rows {
		bucket := out.Unaccepted
		if r.Accepted {
			bucket = out.Accepted
		}
		bucket[r.Category] = append(bucket[r.Category], Item{
			ID:             r.ID,
			Recommendation: r.Recommendation,
			Explanation:    r.Explanation,
			Frequency:      r.Frequency,
			CreatedAt:      utility.TimeValue(r.CreatedAt),
		})
	}
	return out, nil
}

// SetAcceptance marks a recommendation accepted or not.
func (s *Service) SetAcceptance(ctx context.Context, id int64, accepted bool) (database.Recommendation, error) {
	rec, err := s.store.SetRecommendationAcceptance(ctx, database.SetRecommendationAcceptanceParams{ID: id, Accepted: accepted})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Recommendation{}, fmt.Errorf("%w: %d", ErrRecommendationNotFound, id)
		}
		return database.Recommendation{}, fmt.Errorf("update recommendation: %w", err)
	}
	log.Info().Int64("recommendation_id", id).Bool("accepted", accepted).Msg("Recommendation acceptance updated")
	return rec, nil
}
