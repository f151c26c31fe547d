package assist

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

var questionTypes = map[string]struct{}{
	"single_choice":   {},
	"multiple_choice": {},
	"text":            {},
	"rating":          {},
	"scale":           {},
}

// extractJSONObject returns the first balanced JSON object in text. Models
// often wrap JSON in prose or code fences.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func parseSurvey(text string) (GeneratedSurvey, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return GeneratedSurvey{}, ErrUnparseableOutput
	}
	var survey GeneratedSurvey
	if err := json.Unmarshal([]byte(raw), &survey); err != nil {
		return GeneratedSurvey{}, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}

	survey.Title = strings.TrimSpace(survey.Title)
	questions := make([]GeneratedQuestion, 0, len(survey.Questions))
	for _, q := range survey.Questions {
		q.Content = strings.TrimSpace(q.Content)
		if q.Content == "" {
			continue
		}
		q.Type = strings.ToLower(strings.TrimSpace(q.Type))
		if _, ok := questionTypes[q.Type]; !ok {
			q.Type = "text"
		}
		if q.Type == "text" || q.Type == "rating" || q.Type == "scale" {
			q.Options = nil
		}
		q.ID = fmt.Sprintf("q%d", len(questions)+1)
		questions = append(questions, q)
	}
	if survey.Title == "" || len(questions) == 0 {
		return GeneratedSurvey{}, ErrUnparseableOutput
	}
	survey.Questions = questions
	return survey, nil
}

// parseAnalysis reads the model answer. ok is false when the answer had no
// usable JSON and the default analysis was substituted.
func parseAnalysis(text string) (Analysis, bool) {
	raw, found := extractJSONObject(text)
	if !found {
		return DefaultAnalysis(), false
	}
	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return DefaultAnalysis(), false
	}

	switch strings.ToLower(strings.TrimSpace(a.Sentiment)) {
	case SentimentPositive:
		a.Sentiment = SentimentPositive
	case SentimentNegative:
		a.Sentiment = SentimentNegative
	default:
		a.Sentiment = SentimentNeutral
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	if a.Insights == nil {
		a.Insights = []string{}
	}
	switch {
	case a.Confidence < 0:
		a.Confidence = 0
	case a.Confidence > 1:
		a.Confidence = 1
	}
	return a, true
}

// qualityScore grades a response from the model confidence and how much of it
// carries substantive text.
func qualityScore(a Analysis, req AnalyzeRequest) QualityScore {
	substantive := 0
	for _, ans := range req.Answers {
		if utf8.RuneCountInString(strings.TrimSpace(ans.Text)) > 10 {
			substantive++
		}
	}
	completion := req.CompletionRate
	if completion <= 0 {
		completion = 1
	}

	score := a.Confidence * completion
	if substantive > 0 {
		score += 0.1
	}
	switch {
	case score >= 0.7:
		return QualityGreen
	case score >= 0.4:
		return QualityYellow
	default:
		return QualityRed
	}
}
