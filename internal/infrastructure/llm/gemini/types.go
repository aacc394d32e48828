package gemini

// Wire types for the Google Gemini generateContent API. Trimmed from the
// teacher's version: tool calls in this system travel as plain text that
// domain/tool.Parse recognizes, not as Gemini function-calling parts, so
// FunctionCall/FunctionResponse/ToolDeclaration have no home here.
// Reference: https://ai.google.dev/api/rest/v1beta/models/generateContent

// Request is the Gemini generateContent request body.
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content represents one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" | "model"
	Parts []Part `json:"parts"`
}

// Part is a text content element within a Content.
type Part struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig controls generation parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// Response is the Gemini generateContent response body.
type Response struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// Candidate is a single response candidate.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"` // "STOP" | "MAX_TOKENS" | "SAFETY"
}

// UsageMetadata reports token consumption.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Total returns the total token count, falling back to the sum of its
// parts when the API omits it.
func (u *UsageMetadata) Total() int {
	if u.TotalTokenCount > 0 {
		return u.TotalTokenCount
	}
	return u.PromptTokenCount + u.CandidatesTokenCount
}

// ListModelsResponse is the models.list response body, used only for the
// optional list_models() operation (spec §4.4).
type ListModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
