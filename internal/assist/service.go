package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/quorum/internal/clock"
	llmdomain "github.com/smallbiznis/quorum/internal/llm/domain"
	obscontext "github.com/smallbiznis/quorum/internal/observability/context"
	obslogger "github.com/smallbiznis/quorum/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/quorum/internal/observability/metrics"
	"github.com/smallbiznis/quorum/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 20

	surveyTemperature = 0.7
	surveyMaxTokens   = 2000

	endpointGenerateSurvey  = "generate_survey"
	endpointAnalyzeResponse = "analyze_response"
)

// Generator is the completion surface assist needs from the orchestrator.
type Generator interface {
	GenerateCompletion(ctx context.Context, req llmdomain.CompletionRequest) (*llmdomain.Completion, error)
	GenerateAnalysis(ctx context.Context, prompt, background string) (string, error)
}

// Limiter admits or rejects a user's AI request.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (*ratelimit.RateLimitResult, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Generator  Generator
	Limiter    Limiter             `optional:"true"`
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	generator  Generator
	limiter    Limiter
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:        p.Log.Named("assist.service"),
		generator:  p.Generator,
		limiter:    p.Limiter,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

// GenerateSurvey drafts a survey from a free text description.
func (s *Service) GenerateSurvey(ctx context.Context, userID int64, req GenerateSurveyRequest) (GeneratedSurvey, error) {
	req.Description = strings.TrimSpace(req.Description)
	if userID <= 0 || req.Description == "" {
		return GeneratedSurvey{}, ErrInvalidRequest
	}
	switch {
	case req.QuestionCount <= 0:
		req.QuestionCount = defaultQuestionCount
	case req.QuestionCount > maxQuestionCount:
		req.QuestionCount = maxQuestionCount
	}

	ctx = obscontext.WithUserID(ctx, userID)
	if err := s.admit(ctx, userID, endpointGenerateSurvey); err != nil {
		return GeneratedSurvey{}, err
	}

	completion, err := s.generator.GenerateCompletion(ctx, llmdomain.CompletionRequest{
		Messages: []llmdomain.Message{
			{Role: llmdomain.RoleSystem, Content: surveySystemPrompt},
			{Role: llmdomain.RoleUser, Content: surveyUserPrompt(req)},
		},
		Temperature: llmdomain.Temp(surveyTemperature),
		MaxTokens:   surveyMaxTokens,
	})
	if err != nil {
		return GeneratedSurvey{}, s.unavailable(ctx, err)
	}

	survey, err := parseSurvey(completion.Content)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("survey draft not parseable", zap.String("provider", completion.Provider), zap.Error(err))
		return GeneratedSurvey{}, err
	}
	survey.Provider = completion.Provider
	survey.GeneratedAt = s.clock.Now().UTC()

	obslogger.WithContext(ctx, s.log).Info("survey drafted",
		zap.String("provider", completion.Provider),
		zap.Int("questions", len(survey.Questions)),
	)
	return survey, nil
}

// AnalyzeResponse grades a submitted response. An unreadable model answer
// degrades to the default analysis instead of failing.
func (s *Service) AnalyzeResponse(ctx context.Context, userID int64, req AnalyzeRequest) (AnalysisResult, error) {
	if userID <= 0 || len(req.Answers) == 0 {
		return AnalysisResult{}, ErrInvalidRequest
	}
	if req.CompletionRate < 0 || req.CompletionRate > 1 {
		return AnalysisResult{}, ErrInvalidRequest
	}

	ctx = obscontext.WithUserID(ctx, userID)
	if err := s.admit(ctx, userID, endpointAnalyzeResponse); err != nil {
		return AnalysisResult{}, err
	}

	text, err := s.generator.GenerateAnalysis(ctx, analysisPrompt, analysisBackground(req))
	if err != nil {
		return AnalysisResult{}, s.unavailable(ctx, err)
	}

	analysis, ok := parseAnalysis(text)
	if !ok {
		obslogger.WithContext(ctx, s.log).Warn("analysis output not parseable, using default", zap.String("response_id", req.ResponseID))
	}
	return AnalysisResult{
		ResponseID:   req.ResponseID,
		QualityScore: qualityScore(analysis, req),
		Analysis:     analysis,
		Degraded:     !ok,
		AnalyzedAt:   s.clock.Now().UTC(),
	}, nil
}

func (s *Service) admit(ctx context.Context, userID int64, endpoint string) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		// Limiter errors fail open.
		obslogger.WithContext(ctx, s.log).Warn("assist rate limiter unavailable", zap.Error(err))
		return nil
	}
	if res != nil && !res.Allowed {
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}
	return nil
}

func (s *Service) unavailable(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	obslogger.WithContext(ctx, s.log).Error("ai generation failed", zap.Error(err))
	return ErrServiceUnavailable
}

const surveySystemPrompt = "You design concise, unbiased surveys. Reply with a single JSON object and nothing else."

func surveyUserPrompt(req GenerateSurveyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a survey with %d questions.\n", req.QuestionCount)
	fmt.Fprintf(&b, "Description: %s\n", req.Description)
	if c := strings.TrimSpace(req.Category); c != "" {
		fmt.Fprintf(&b, "Category: %s\n", c)
	}
	if a := strings.TrimSpace(req.TargetAudience); a != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", a)
	}
	b.WriteString(`Use question types single_choice, multiple_choice, text or rating.
Return JSON in this shape:
{"title": "...", "description": "...", "questions": [{"content": "...", "type": "single_choice", "options": [{"label": "...", "value": "..."}], "required": true}]}`)
	return b.String()
}

const analysisPrompt = `Analyse the survey response in the context. Return JSON only:
{"sentiment": "positive|negative|neutral", "keywords": ["..."], "insights": ["..."], "confidence": 0.0}`

func analysisBackground(req AnalyzeRequest) string {
	var b strings.Builder
	if title := strings.TrimSpace(req.SurveyTitle); title != "" {
		fmt.Fprintf(&b, "Survey: %s\n", title)
	}
	if req.CompletionRate > 0 {
		fmt.Fprintf(&b, "Completion rate: %.0f%%\n", req.CompletionRate*100)
	}
	for i, a := range req.Answers {
		fmt.Fprintf(&b, "Q%d (%s): %s\nA%d: %s\n", i+1, a.Type, strings.TrimSpace(a.Question), i+1, strings.TrimSpace(a.Text))
	}
	return b.String()
}
