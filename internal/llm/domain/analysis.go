package domain

import "strings"

// AnalysisPersona is the system prompt used for free-form analysis.
const AnalysisPersona = "You are a careful survey analyst. Answer precisely and return only what is asked."

// AnalysisRequest builds the completion request shared by every adapter's
// GenerateAnalysis: persona, optional context, then the prompt.
func AnalysisRequest(prompt, background string) CompletionRequest {
	messages := []Message{{Role: RoleSystem, Content: AnalysisPersona}}
	if background = strings.TrimSpace(background); background != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: "Context: " + background})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return CompletionRequest{
		Messages:    messages,
		Temperature: Temp(AnalysisTemperature),
		MaxTokens:   AnalysisMaxTokens,
	}
}

// ValidateRequest rejects requests no provider can answer.
func ValidateRequest(req CompletionRequest) error {
	if len(req.Messages) == 0 {
		return ErrNoMessages
	}
	return nil
}
