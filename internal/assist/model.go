package assist

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("ai_service_unavailable")
	ErrUnparseableOutput  = errors.New("unparseable_model_output")
)

// RateLimitedError carries the wait before the next allowed request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate_limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

type GenerateSurveyRequest struct {
	Description    string `json:"description"`
	Category       string `json:"category,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	QuestionCount  int    `json:"question_count,omitempty"`
}

type QuestionOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type GeneratedQuestion struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Type     string           `json:"type"`
	Options  []QuestionOption `json:"options,omitempty"`
	Required bool             `json:"required"`
}

type GeneratedSurvey struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
	Provider    string              `json:"provider"`
	GeneratedAt time.Time           `json:"generated_at"`
}

type AnsweredQuestion struct {
	Question string `json:"question"`
	Type     string `json:"answer_type"`
	Text     string `json:"text_value"`
}

type AnalyzeRequest struct {
	ResponseID     string             `json:"response_id"`
	SurveyTitle    string             `json:"survey_title"`
	Answers        []AnsweredQuestion `json:"answers"`
	CompletionRate float64            `json:"completion_rate,omitempty"`
}

type Analysis struct {
	Sentiment  string   `json:"sentiment"`
	Keywords   []string `json:"keywords"`
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

type QualityScore string

const (
	QualityGreen  QualityScore = "green"
	QualityYellow QualityScore = "yellow"
	QualityRed    QualityScore = "red"
)

type AnalysisResult struct {
	ResponseID   string       `json:"response_id"`
	QualityScore QualityScore `json:"quality_score"`
	Analysis     Analysis     `json:"analysis"`
	Degraded     bool         `json:"degraded"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	// fallbackConfidence is reported when the model output could not be read.
	fallbackConfidence = 0.3
)

// DefaultAnalysis is returned when the model answer is not valid JSON.
func DefaultAnalysis() Analysis {
	return Analysis{
		Sentiment:  SentimentNeutral,
		Keywords:   []string{},
		Insights:   []string{},
		Confidence: fallbackConfidence,
	}
}
