package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Conditions are the eligibility requirements stored on a rule.
type Conditions struct {
	MinQuestions  int  `json:"min_questions,omitempty"`
	RequirePublic bool `json:"require_public,omitempty"`
	RequireFree   bool `json:"require_free,omitempty"`
}

// Facts describe the triggering event that conditions are evaluated against.
type Facts struct {
	QuestionCount int  `json:"question_count"`
	IsPublic      bool `json:"is_public"`
	IsFree        bool `json:"is_free"`
}

// ParseConditions decodes raw rule conditions. Unknown keys are rejected so a
// rule carrying a condition this service cannot evaluate never pays out.
func ParseConditions(raw []byte) (Conditions, error) {
	var c Conditions
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return c, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Conditions{}, fmt.Errorf("%w: conditions: %v", ErrInvalidRule, err)
	}
	if c.MinQuestions < 0 {
		return Conditions{}, fmt.Errorf("%w: min_questions must not be negative", ErrInvalidRule)
	}
	return c, nil
}

// Satisfied reports whether facts meet every condition.
func (c Conditions) Satisfied(f Facts) bool {
	if c.MinQuestions > 0 && f.QuestionCount < c.MinQuestions {
		return false
	}
	if c.RequirePublic && !f.IsPublic {
		return false
	}
	if c.RequireFree && !f.IsFree {
		return false
	}
	return true
}
