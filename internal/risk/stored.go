package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eon-server/internal/geminiservice"
	"eon-server/internal/utility"
)

// StoredCluster is a persisted risk cluster.
type StoredCluster struct {
	ClusterName string                  `json:"cluster_name"`
	RiskLevel   string                  `json:"risk_level"`
	Explanation string                  `json:"explanation"`
	Diseases    []geminiservice.Disease `json:"diseases"`
	UpdatedAt   *time.Time              `json:"updated_at"`
}

// Stored is the persisted view of a device's risk analysis.
type Stored struct {
	DeviceID             string           `json:"device_id"`
	Clusters             []StoredCluster  `json:"risk_clusters"`
	RecommendationCounts map[string]int64 `json:"recommendation_counts"`
}

// Stored returns the device's clusters and how many recommendations exist per category.
func (s *Service) Stored(ctx context.Context, externalID string) (Stored, error) {
	device, err := s.patients.ResolveDevice(ctx, externalID)
	if err != nil {
		return Stored{}, err
	}

	rows, err := s.store.ListRiskPredictions(ctx, device.ID)
	if err != nil {
		return Stored{}, fmt.Errorf("list risk clusters: %w", err)
	}
	counts, err := s.store.CountRecommendationsByCategory(ctx, device.ID)
	if err != nil {
		return Stored{}, fmt.Errorf("count recommendations: %w", err)
	}

	out := Stored{
		DeviceID:             device.DeviceID,
		Clusters:             make([]StoredCluster, 0, len(rows)),
		RecommendationCounts: map[string]int64{},
	}
	for _, c := range geminiservice.Categories {
		out.RecommendationCounts[c] = 0
	}
	for _, c := range counts {
		out.RecommendationCounts[c.Category] = c.Total
	}

	// One row per name is enforced by StoreClusters; collapse anyway in case of older duplicates.
	seen := map[string]int{}
	for _, r := range rows {
		diseases, err := decodeDiseases(r.Diseases)
		if err != nil {
			return Stored{}, fmt.Errorf("decode risk cluster %d: %w", r.ID, err)
		}
		if i, ok := seen[r.ClusterName]; ok {
			out.Clusters[i].Diseases = geminiservice.MergeDiseases(out.Clusters[i].Diseases, diseases)
			continue
		}
		seen[r.ClusterName] = len(out.Clusters)
		out.Clusters = append(out.Clusters, StoredCluster{
			ClusterName: r.ClusterName,
			RiskLevel:   r.RiskLevel,
			Explanation: r.Explanation,
			Diseases:    diseases,
			UpdatedAt:   utility.TimeValue(r.CreatedAt),
		})
	}
	return out, nil
}

func decodeDiseases(b []byte) ([]geminiservice.Disease, error) {
	out := []geminiservice.Disease{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return []geminiservice.Disease{}, err
	}
	return out, nil
}

func encodeDiseases(d []geminiservice.Disease) ([]byte, error) {
	if d == nil {
		d = []geminiservice.Disease{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode diseases: %w", err)
	}
	return b, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

