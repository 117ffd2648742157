package geminiservice

/* =================================================================================
							GEMINI SCHEMA DEFINITION
=================================================================================*/

// GeminiSchema is the subset of the OpenAPI schema Gemini accepts for structured output.
type GeminiSchema struct {
	Type        string                   `json:"type"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]*GeminiSchema `json:"properties,omitempty"`
	Items       *GeminiSchema            `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Enum        []string                 `json:"enum,omitempty"`
}

/* =================================================================================
							PROMPTS
=================================================================================*/

// SOAPSystemPrompt turns aggregated metrics and notes into a clinical note.
const SOAPSystemPrompt = `You are a clinical note generator. Create a SOAP note from the patient data provided, reflecting both lifestyle metrics and subjective feedback. Use clearly labeled sections:

Subjective (S):
- Summarize the chief complaint and self-reported symptoms (fatigue, dizziness, stress, ...).
- Include relevant history such as recent changes in energy, sleep disturbances or reduced activity.

Objective (O):
- List measurable data: vital signs and lifestyle metrics.
- Include average resting heart rate, daily step count, sleep duration and quality.
- Note observable changes against the patient's usual baseline.

Assessment (A):
- Evaluate potential underlying issues or risks (for example cardiovascular strain or metabolic concerns).
- Relate the findings to known risk factors.

Write in a clear, concise and clinically appropriate tone with a distinct heading for each section.`

// RiskSystemPrompt clusters classifier output into named risk groups.
const RiskSystemPrompt = `You are an expert clinical risk interpreter. Turn the raw output of a predictive disease model into a concise summary for a mobile app.

The input is a JSON object with:
- analysis_text_used: which text was analysed (e.g. "SOAP Note")
- input_text: the patient's metrics and notes
- metrics_summary: aggregated wearable metrics
- predictions: predicted diseases, each with "description", "icd9_code" and "probability" (0 to 1)
- soap_note: the full SOAP note

Risk categorization, from each prediction's probability:
- High Risk: probability >= 0.85
- Moderate Risk: 0.70 <= probability < 0.85
- Low Risk: probability < 0.70

Disease clustering: group related diseases into general clusters. Use these cluster names:
"Cardiovascular", "Metabolic/Obesity", "Sleep Disorders", "Respiratory", "Neurological",
"Mental Health", "Musculoskeletal". Anything that does not clearly fit (including "Description not found") goes to "Other".
A cluster's risk level is the highest risk level among its diseases.

Output a JSON array of clusters. Each cluster has:
- cluster_name: string
- diseases: array of {"description": string, "icd9_code": string}
- risk_level: "High Risk", "Moderate Risk" or "Low Risk"
- explanation: one or two sentences explaining the risk level using the input data

Return ONLY the JSON array.`

// RecommendationSystemPrompt produces lifestyle recommendations per category.
const RecommendationSystemPrompt = `You are a health recommendations generator. From the SOAP note and risk analysis provided, generate practical, actionable recommendations anyone can follow in daily life, in three categories: Sleep, Steps and Heart_Rate.

Return ONLY a JSON object of this shape:
{
  "Sleep": [{"recommendation": "string", "explanation": "string", "frequency": "string"}],
  "Steps": [{"recommendation": "string", "explanation": "string", "frequency": "string"}],
  "Heart_Rate": [{"recommendation": "string", "explanation": "string", "frequency": "string"}]
}

Guidelines:
1. Give 2-4 recommendations per category.
2. Make each one specific and actionable, with a clear frequency.
3. Prefer lifestyle changes that need no special equipment.
4. Do not give medical advice or treatment suggestions.
5. Reference the SOAP note or risk analysis in each explanation.
6. If previously accepted recommendations are listed, do not repeat them; build on them instead.`

/* =================================================================================
							RESPONSE SCHEMAS
=================================================================================*/

var diseaseSchema = &GeminiSchema{
	Type: "OBJECT",
	Properties: map[string]*GeminiSchema{
		"description": {Type: "STRING"},
		"icd9_code":   {Type: "STRING"},
	},
	Required: []string{"description", "icd9_code"},
}

// RiskClusterSchema describes the array returned for RiskSystemPrompt.
var RiskClusterSchema = &GeminiSchema{
	Type: "ARRAY",
	Items: &GeminiSchema{
		Type: "OBJECT",
		Properties: map[string]*GeminiSchema{
			"cluster_name": {Type: "STRING", Description: "Cluster from the fixed list, or Other."},
			"diseases":     {Type: "ARRAY", Items: diseaseSchema},
			"risk_level": {
				Type:   "STRING",
				Format: "enum",
				Enum:   []string{"High Risk", "Moderate Risk", "Low Risk"},
			},
			"explanation": {Type: "STRING"},
		},
		Required: []string{"cluster_name", "diseases", "risk_level", "explanation"},
	},
}

var recommendationItemSchema = &GeminiSchema{
	Type: "ARRAY",
	Items: &GeminiSchema{
		Type: "OBJECT",
		Properties: map[string]*GeminiSchema{
			"recommendation": {Type: "STRING"},
			"explanation":    {Type: "STRING"},
			"frequency":      {Type: "STRING"},
		},
		Required: []string{"recommendation", "explanation", "frequency"},
	},
}

// RecommendationSchema describes the object returned for RecommendationSystemPrompt.
var RecommendationSchema = &GeminiSchema{
	Type: "OBJECT",
	Properties: map[string]*GeminiSchema{
		CategorySleep:     recommendationItemSchema,
		CategorySteps:     recommendationItemSchema,
		CategoryHeartRate: recommendationItemSchema,
	},
	Required: []string{CategorySleep, CategorySteps, CategoryHeartRate},
}
