package rewards

import (
	"strings"
	"unicode/utf8"

	"github.com/smallbiznis/quorum/internal/points/domain"
)

const (
	AnswerTypeText = "text"

	// TextAnswerBonus is paid per text answer longer than MinTextLength characters.
	TextAnswerBonus = 5
	MinTextLength   = 10
	// CompletionBonus is paid when every question was answered.
	CompletionBonus = 10
)

// SurveyCompletion computes the points for a submitted response.
func SurveyCompletion(base int64, questionCount int, answers []domain.Answer) int64 {
	points := base
	points += int64(SubstantiveTextAnswers(answers)) * TextAnswerBonus
	if questionCount > 0 && len(answers) == questionCount {
		points += CompletionBonus
	}
	return points
}

func SubstantiveTextAnswers(answers []domain.Answer) int {
	n := 0
	for _, a := range answers {
		if !strings.EqualFold(strings.TrimSpace(a.Type), AnswerTypeText) {
			continue
		}
		if utf8.RuneCountInString(a.Text) > MinTextLength {
			n++
		}
	}
	return n
}
