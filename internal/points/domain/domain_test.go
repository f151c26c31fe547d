package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		earned int64
		want   int
	}{
		{0, 1},
		{499, 1},
		{500, 2},
		{1499, 2},
		{1500, 3},
		{3000, 4},
		{5999, 4},
		{6000, 5},
		{1_000_000, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.earned), "earned %d", tt.earned)
	}
}

func TestLevelsReturnsCopy(t *testing.T) {
	l := Levels()
	l[0].MinPoints = 42
	assert.Equal(t, int64(0), Levels()[0].MinPoints)
}

func TestParseConditions(t *testing.T) {
	c, err := ParseConditions([]byte(`{"min_questions": 5, "require_public": true}`))
	require.NoError(t, err)
	assert.Equal(t, Conditions{MinQuestions: 5, RequirePublic: true}, c)

	for _, raw := range []string{"", "null", "{}"} {
		c, err := ParseConditions([]byte(raw))
		require.NoError(t, err, raw)
		assert.True(t, c.Satisfied(Facts{}), raw)
	}

	_, err = ParseConditions([]byte(`{"min_followers": 10}`))
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = ParseConditions([]byte(`{"min_questions": -1}`))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestConditionsSatisfied(t *testing.T) {
	c := Conditions{MinQuestions: 5, RequirePublic: true, RequireFree: true}

	assert.True(t, c.Satisfied(Facts{QuestionCount: 5, IsPublic: true, IsFree: true}))
	assert.False(t, c.Satisfied(Facts{QuestionCount: 4, IsPublic: true, IsFree: true}))
	assert.False(t, c.Satisfied(Facts{QuestionCount: 5, IsFree: true}))
	assert.False(t, c.Satisfied(Facts{QuestionCount: 5, IsPublic: true}))
}

func TestInsufficientBalanceError(t *testing.T) {
	var err error = &InsufficientBalanceError{Required: 150, Available: 100}

	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Contains(t, err.Error(), "shortfall 50")
}

func TestTransactionSignedAmount(t *testing.T) {
	assert.Equal(t, int64(10), Transaction{Direction: DirectionEarn, Amount: 10}.SignedAmount())
	assert.Equal(t, int64(-10), Transaction{Direction: DirectionSpend, Amount: 10}.SignedAmount())
}
