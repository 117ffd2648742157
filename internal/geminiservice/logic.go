package geminiservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"eon-server/internal/classifier"
)

// Recommendation categories, also used as JSON keys in prompts and responses.
const (
	CategorySleep     = "Sleep"
	CategorySteps     = "Steps"
	CategoryHeartRate = "Heart_Rate"
)

// Categories lists the recommendation categories in display order.
var Categories = []string{CategorySleep, CategorySteps, CategoryHeartRate}

const (
	soapTemperature           = 1.0
	riskTemperature           = 1.0
	recommendationTemperature = 0.7
)

// RiskInput is the JSON document sent to the risk formatter.
type RiskInput struct {
	AnalysisTextUsed string                  `json:"analysis_text_used"`
	InputText        string                  `json:"input_text"`
	MetricsSummary   string                  `json:"metrics_summary"`
	Predictions      []classifier.Prediction `json:"predictions"`
	SoapNote         string                  `json:"soap_note"`
}

type Disease struct {
	Description string `json:"description"`
	ICD9Code    string `json:"icd9_code"`
}

// RiskCluster is one named group of related diagnoses sharing a risk level.
type RiskCluster struct {
	ClusterName string    `json:"cluster_name"`
	Diseases    []Disease `json:"diseases"`
	RiskLevel   string    `json:"risk_level"`
	Explanation string    `json:"explanation"`
}

type RecommendationItem struct {
	Recommendation string `json:"recommendation"`
	Explanation    string `json:"explanation"`
	Frequency      string `json:"frequency"`
}

// RecommendationSet holds generated recommendations per category.
type RecommendationSet struct {
	Sleep     []RecommendationItem `json:"Sleep"`
	Steps     []RecommendationItem `json:"Steps"`
	HeartRate []RecommendationItem `json:"Heart_Rate"`
}

// ByCategory returns the items for category, nil for unknown categories.
func (s RecommendationSet) ByCategory(category string) []RecommendationItem {
	switch category {
	case CategorySleep:
		return s.Sleep
	case CategorySteps:
		return s.Steps
	case CategoryHeartRate:
		return s.HeartRate
	}
	return nil
}

// PastRecommendation is a stored recommendation shown to the model for context.
type PastRecommendation struct {
	Category       string
	Recommendation string
	Accepted       bool
}

type RecommendationInput struct {
	SoapNote             string
	FormattedPredictions []RiskCluster
	Past                 []PastRecommendation
}

// GenerateSOAPNote writes a clinical note from the metrics and notes text.
func (c *Client) GenerateSOAPNote(ctx context.Context, log *zerolog.Logger, inputText string) (string, error) {
	if strings.TrimSpace(inputText) == "" {
		return "", errors.New("no patient data to summarise")
	}
	note, err := c.Generate(ctx, log, Request{
		Name:        "SOAPNote",
		System:      SOAPSystemPrompt,
		User:        inputText,
		Temperature: soapTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate soap note: %w", err)
	}
	return strings.TrimSpace(note), nil
}

// FormatPredictions clusters classifier predictions into risk groups.
func (c *Client) FormatPredictions(ctx context.Context, log *zerolog.Logger, in RiskInput) ([]RiskCluster, error) {
	if log == nil {
		log = zerolog.Ctx(ctx)
	}
	if in.Predictions == nil {
		in.Predictions = []classifier.Prediction{}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal risk input: %w", err)
	}

	raw, err := c.Generate(ctx, log, Request{
		Name:        "RiskClusters",
		System:      RiskSystemPrompt,
		User:        string(payload),
		JSON:        true,
		Schema:      RiskClusterSchema,
		Temperature: riskTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("format predictions: %w", err)
	}

	clusters, err := ParseRiskClusters(raw)
	if err != nil {
		log.Error().Err(err).Str("raw_response", truncate(raw, 1000)).Msg("Failed to parse risk clusters")
		return nil, err
	}
	return clusters, nil
}

// GenerateRecommendations asks for Sleep, Steps and Heart_Rate recommendations.
func (c *Client) GenerateRecommendations(ctx context.Context, log *zerolog.Logger, in RecommendationInput) (RecommendationSet, error) {
	if log == nil {
		log = zerolog.Ctx(ctx)
	}
	user, err := BuildRecommendationPrompt(in)
	if err != nil {
		return RecommendationSet{}, err
	}

	raw, err := c.Generate(ctx, log, Request{
		Name:        "Recommendations",
		System:      RecommendationSystemPrompt,
		User:        user,
		JSON:        true,
		Schema:      RecommendationSchema,
		Temperature: recommendationTemperature,
	})
	if err != nil {
		return RecommendationSet{}, fmt.Errorf("generate recommendations: %w", err)
	}

	set, err := ParseRecommendations(raw)
	if err != nil {
		log.Error().Err(err).Str("raw_response", truncate(raw, 1000)).Msg("Failed to parse recommendations")
		return RecommendationSet{}, err
	}
	return set, nil
}

// BuildRecommendationPrompt renders the user content for GenerateRecommendations.
func BuildRecommendationPrompt(in RecommendationInput) (string, error) {
	clusters := in.FormattedPredictions
	if clusters == nil {
		clusters = []RiskCluster{}
	}
	risk, err := json.MarshalIndent(clusters, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal risk clusters: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SOAP Note:\n%s\n\nRisk Analysis Results:\n%s", in.SoapNote, risk)

	var accepted, pending []string
	for _, p := range in.Past {
		line := fmt.Sprintf("- [%s] %s", p.Category, p.Recommendation)
		if p.Accepted {
			accepted = append(accepted, line)
		} else {
			pending = append(pending, line)
		}
	}
	if len(accepted) > 0 {
		fmt.Fprintf(&sb, "\n\nPreviously accepted recommendations (do not repeat):\n%s", strings.Join(accepted, "\n"))
	}
	if len(pending) > 0 {
		fmt.Fprintf(&sb, "\n\nPreviously suggested but not accepted:\n%s", strings.Join(pending, "\n"))
	}
	return sb.String(), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
