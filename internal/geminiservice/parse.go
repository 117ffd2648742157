package geminiservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResponse means the model returned text that could not be read as the expected JSON.
var ErrInvalidResponse = errors.New("invalid model response")

// Cluster names the risk formatter may produce.
const (
	ClusterCardiovascular  = "Cardiovascular"
	ClusterMetabolic       = "Metabolic/Obesity"
	ClusterSleep           = "Sleep Disorders"
	ClusterRespiratory     = "Respiratory"
	ClusterNeurological    = "Neurological"
	ClusterMentalHealth    = "Mental Health"
	ClusterMusculoskeletal = "Musculoskeletal"
	ClusterOther           = "Other"
)

// Normalised risk levels.
const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
)

const notSpecified = "Not specified"

var clusterKeywords = []struct {
	name     string
	keywords []string
}{
	{ClusterCardiovascular, []string{"cardio", "heart", "vascular", "circulat", "hypertens"}},
	{ClusterMetabolic, []string{"metabolic", "obesity", "endocrin", "diabet", "nutrition"}},
	{ClusterSleep, []string{"sleep", "insomnia", "apnea"}},
	{ClusterRespiratory, []string{"respirat", "pulmon", "lung", "breath"}},
	{ClusterNeurological, []string{"neuro", "nervous", "brain"}},
	{ClusterMentalHealth, []string{"mental", "psych", "mood", "anxiety", "depress", "stress"}},
	{ClusterMusculoskeletal, []string{"musculo", "muscle", "bone", "joint", "skeletal"}},
}

// NormalizeClusterName maps a model-produced cluster name onto the fixed taxonomy.
func NormalizeClusterName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return ClusterOther
	}
	for _, c := range clusterKeywords {
		if strings.EqualFold(lower, c.name) {
			return c.name
		}
	}
	for _, c := range clusterKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.name
			}
		}
	}
	return ClusterOther
}

// NormalizeRiskLevel maps "High Risk", "moderate" and similar onto Low/Moderate/High.
func NormalizeRiskLevel(level string) string {
	lower := strings.ToLower(level)
	switch {
	case strings.Contains(lower, "high"):
		return RiskHigh
	case strings.Contains(lower, "moderate"), strings.Contains(lower, "medium"):
		return RiskModerate
	}
	return RiskLow
}

// RiskRank orders normalised risk levels, higher is worse.
func RiskRank(level string) int {
	switch level {
	case RiskHigh:
		return 2
	case RiskModerate:
		return 1
	}
	return 0
}

// flexString decodes a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type rawDisease struct {
	Description flexString `json:"description"`
	ICD9Code    flexString `json:"icd9_code"`
	Code        flexString `json:"code"`
}

type rawCluster struct {
	ClusterName flexString   `json:"cluster_name"`
	Diseases    []rawDisease `json:"diseases"`
	RiskLevel   flexString   `json:"risk_level"`
	Explanation flexString   `json:"explanation"`
}

// ParseRiskClusters reads the risk formatter output. Names and levels are normalised,
// diseases without a code are dropped and clusters with the same name are merged.
func ParseRiskClusters(text string) ([]RiskCluster, error) {
	body, err := extractJSON(text, '[', ']')
	if err != nil {
		return nil, err
	}

	var raw []rawCluster
	if err := json.Unmarshal(body, &raw); err != nil {
		// A single cluster object is tolerated.
		var one rawCluster
		if errObj := json.Unmarshal(body, &one); errObj != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		raw = []rawCluster{one}
	}

	clusters := []RiskCluster{}
	index := map[string]int{}
	for _, rc := range raw {
		name := NormalizeClusterName(string(rc.ClusterName))
		level := NormalizeRiskLevel(string(rc.RiskLevel))

		var diseases []Disease
		for _, d := range rc.Diseases {
			code := string(d.ICD9Code)
			if code == "" {
				code = string(d.Code)
			}
			if code == "" {
				continue
			}
			desc := string(d.Description)
			if desc == "" {
				desc = notSpecified
			}
			diseases = append(diseases, Disease{Description: desc, ICD9Code: code})
		}
		if len(diseases) == 0 {
			continue
		}

		if i, ok := index[name]; ok {
			merged := &clusters[i]
			merged.Diseases = MergeDiseases(merged.Diseases, diseases)
			if RiskRank(level) > RiskRank(merged.RiskLevel) {
				merged.RiskLevel = level
				merged.Explanation = string(rc.Explanation)
			}
			continue
		}
		index[name] = len(clusters)
		clusters = append(clusters, RiskCluster{
			ClusterName: name,
			Diseases:    MergeDiseases(nil, diseases),
			RiskLevel:   level,
			Explanation: string(rc.Explanation),
		})
	}
	return clusters, nil
}

// MergeDiseases appends incoming diseases whose code is not already present. Existing entries are kept as is.
func MergeDiseases(existing, incoming []Disease) []Disease {
	out := make([]Disease, 0, len(existing)+len(incoming))
	seen := map[string]bool{}
	for _, d := range existing {
		if seen[d.ICD9Code] {
			continue
		}
		seen[d.ICD9Code] = true
		out = append(out, d)
	}
	for _, d := range incoming {
		if d.ICD9Code == "" || seen[d.ICD9Code] {
			continue
		}
		seen[d.ICD9Code] = true
		out = append(out, d)
	}
	return out
}

type rawItem struct {
	Recommendation flexString `json:"recommendation"`
	Explanation    flexString `json:"explanation"`
	Frequency      flexString `json:"frequency"`
}

// ParseRecommendations reads the recommendation output. Missing categories become empty
// lists and missing fields become "Not specified".
func ParseRecommendations(text string) (RecommendationSet, error) {
	body, err := extractJSON(text, '{', '}')
	if err != nil {
		return RecommendationSet{}, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return RecommendationSet{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	items := func(category string) []RecommendationItem {
		out := []RecommendationItem{}
		var list []rawItem
		if msg, ok := raw[category]; !ok || json.Unmarshal(msg, &list) != nil {
			return out
		}
		for _, it := range list {
			rec := strings.TrimSpace(string(it.Recommendation))
			if rec == "" {
				continue
			}
			out = append(out, RecommendationItem{
				Recommendation: rec,
				Explanation:    orNotSpecified(string(it.Explanation)),
				Frequency:      orNotSpecified(string(it.Frequency)),
			})
		}
		return out
	}

	return RecommendationSet{
		Sleep:     items(CategorySleep),
		Steps:     items(CategorySteps),
		HeartRate: items(CategoryHeartRate),
	}, nil
}

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notSpecified
	}
	return s
}

// extractJSON strips markdown fences and {"response": "..."} wrappers, then falls back to
// the outermost open..close span when the text is not valid JSON on its own.
func extractJSON(text string, open, close byte) ([]byte, error) {
	s := stripFences(text)
	if s == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	if json.Valid([]byte(s)) {
		var wrapper struct {
			Response *string `json:"response"`
		}
		if s[0] == '{' && json.Unmarshal([]byte(s), &wrapper) == nil && wrapper.Response != nil {
			return extractJSON(*wrapper.Response, open, close)
		}
		// A JSON string holding the payload.
		if s[0] == '"' {
			var inner string
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				return extractJSON(inner, open, close)
			}
		}
		return []byte(s), nil
	}

	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON found in %q", ErrInvalidResponse, truncate(s, 200))
	}
	candidate := []byte(s[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidResponse)
	}
	return candidate, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i != -1 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
