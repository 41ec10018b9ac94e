package practice

import (
	"testing"
	"time"

	"github.com/quizforge/quiztaker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreComputesRemainingTimeAuthoritatively(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now }, testQuiz())

	attempt, err := store.StartAttempt("quiz-1")
	require.NoError(t, err)

	now = now.Add(25 * time.Second)
	current, err := store.CurrentQuestion(attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Question)
	assert.Equal(t, 35, current.RemainingSeconds, "60s limit minus 25s elapsed")
}

func TestStoreFinalizesWhenQuizBudgetBlown(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now }, testQuiz())

	attempt, err := store.StartAttempt("quiz-1")
	require.NoError(t, err)

	now = now.Add(11 * time.Minute) // quiz budget is 10 minutes
	current, err := store.CurrentQuestion(attempt.ID)
	require.NoError(t, err)
	assert.True(t, current.Completed)

	result, err := store.Results(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonTimeExpired, result.Reason)
	assert.False(t, result.Passed)
}

func TestStoreSkipsQuestionsAbandonedPastGracePeriod(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(func() time.Time { return now }, testQuiz())

	attempt, err := store.StartAttempt("quiz-1")
	require.NoError(t, err)

	// Question limit is 60s plus a 5s grace period for in-flight submits.
	now = now.Add(70 * time.Second)
	current, err := store.CurrentQuestion(attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Question)
	assert.Equal(t, "q2", current.Question.ID)
	assert.Equal(t, 2, current.QuestionNumber)
}

func TestStoreSeedQuizzesAreServable(t *testing.T) {
	store := NewStore(SeedQuizzes()...)

	details, err := store.QuizDetails("go-basics")
	require.NoError(t, err)
	assert.Equal(t, 3, details.Quiz.TotalQuestions)
	assert.False(t, details.Quiz.RequiresRegistration)

	gated, err := store.QuizDetails("concurrency-cert")
	require.NoError(t, err)
	assert.True(t, gated.Quiz.RequiresRegistration)
	assert.Equal(t, 2, gated.Quiz.MaxAttempts)
}
