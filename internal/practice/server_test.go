package practice

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/api"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/quizforge/quiztaker/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuiz() *Quiz {
	limit := 10
	return &Quiz{
		Quiz: model.Quiz{
			ID:                     "quiz-1",
			Title:                  "Integration Quiz",
			TimeLimitMinutes:       &limit,
			PassingScorePercentage: 60,
		},
		Questions: []Question{
			{
				Question: model.Question{
					ID: "q1", Text: "one", Points: 1, TimeLimitSeconds: 60,
					Options: []model.Option{{ID: "q1-a", Text: "right"}, {ID: "q1-b", Text: "wrong"}},
				},
				CorrectOptionID: "q1-a",
			},
			{
				Question: model.Question{
					ID: "q2", Text: "two", Points: 2, TimeLimitSeconds: 60,
					Options: []model.Option{{ID: "q2-a", Text: "wrong"}, {ID: "q2-b", Text: "right"}},
				},
				CorrectOptionID: "q2-b",
			},
			{
				Question: model.Question{
					ID: "q3", Text: "three", Points: 1, TimeLimitSeconds: 60,
					Options: []model.Option{{ID: "q3-a", Text: "right"}, {ID: "q3-b", Text: "wrong"}},
				},
				CorrectOptionID: "q3-a",
			},
		},
	}
}

func newTestStack(t *testing.T, quizzes ...*Quiz) (*api.Client, *config.Config) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Client.Timeout = 5 * time.Second
	cfg.Client.CSRFCookieName = "csrftoken"
	cfg.Client.CSRFHeaderName = "X-CSRF-Token"
	cfg.Timers.RetryDelay = 20 * time.Millisecond

	store := NewStore(quizzes...)
	engine := NewEngine()
	NewServer(store, cfg).RegisterRoutes(engine)

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	cfg.Client.BaseURL = ts.URL

	client, err := api.NewClient(cfg)
	require.NoError(t, err)
	return client, cfg
}

type sessionRecorder struct {
	mu      sync.Mutex
	options map[string]string // question id -> option to pick
	answers []string
	finals  []model.FinalizeReason
	ctrl    *service.AttemptController
}

func (s *sessionRecorder) hooks() service.Hooks {
	return service.Hooks{
		OnQuestion: func(q *model.Question, _, _ int) {
			s.mu.Lock()
			s.answers = append(s.answers, q.ID)
			s.mu.Unlock()
		},
		OnFinalized: func(reason model.FinalizeReason) {
			s.mu.Lock()
			s.finals = append(s.finals, reason)
			s.mu.Unlock()
		},
	}
}

func TestFullAttemptAgainstPracticeBackend(t *testing.T) {
	quiz := testQuiz()
	client, cfg := newTestStack(t, quiz)

	recorder := &sessionRecorder{}
	ctrl := service.NewAttemptController(client, "quiz-1", recorder.hooks(), cfg.Timers.RetryDelay)
	recorder.ctrl = ctrl

	ctx := context.Background()
	require.NoError(t, ctrl.LoadQuizDetails(ctx))
	require.NoError(t, ctrl.StartQuiz(ctx))

	for _, question := range quiz.Questions {
		ctrl.SelectOption(question.CorrectOptionID)
		require.NoError(t, ctrl.Submit(ctx))
	}

	require.Equal(t, service.StateTerminal, ctrl.State())
	require.Equal(t, []model.FinalizeReason{model.ReasonCompleted}, recorder.finals)
	require.Equal(t, []string{"q1", "q2", "q3"}, recorder.answers)

	result, err := ctrl.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Score)
	assert.Equal(t, 4, result.MaxScore)
	assert.True(t, result.Passed)
	assert.Equal(t, model.ReasonCompleted, result.Reason)
}

func TestSkippedQuestionsScoreZero(t *testing.T) {
	quiz := testQuiz()
	client, cfg := newTestStack(t, quiz)

	recorder := &sessionRecorder{}
	ctrl := service.NewAttemptController(client, "quiz-1", recorder.hooks(), cfg.Timers.RetryDelay)

	ctx := context.Background()
	require.NoError(t, ctrl.LoadQuizDetails(ctx))
	require.NoError(t, ctrl.StartQuiz(ctx))

	// Auto-submit with nothing selected, as the question timer would at zero.
	ctrl.QuestionExpired(ctx)
	ctrl.SelectOption("q2-b")
	require.NoError(t, ctrl.Submit(ctx))
	require.NoError(t, ctrl.Skip(ctx))

	result, err := ctrl.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.False(t, result.Passed)

	require.Len(t, result.QuestionResults, 3)
	assert.True(t, result.QuestionResults[0].Skipped)
	assert.True(t, result.QuestionResults[1].Correct)
	assert.True(t, result.QuestionResults[2].Skipped)
}

func TestDuplicateAnswerRejectedWithStructuredCode(t *testing.T) {
	client, _ := newTestStack(t, testQuiz())

	ctx := context.Background()
	_, err := client.GetQuiz(ctx, "quiz-1") // obtain CSRF cookie
	require.NoError(t, err)

	attempt, err := client.StartAttempt(ctx, "quiz-1")
	require.NoError(t, err)

	option := "q1-a"
	sub := model.AnswerSubmission{QuestionID: "q1", SelectedOptionID: &option}
	_, err = client.SubmitAnswer(ctx, attempt.ID, sub)
	require.NoError(t, err)

	_, err = client.SubmitAnswer(ctx, attempt.ID, sub)
	require.Error(t, err)
	assert.Equal(t, api.KindAlreadySubmitted, api.KindOf(err))
}

func TestMutationWithoutCSRFCookieRejected(t *testing.T) {
	client, _ := newTestStack(t, testQuiz())

	// No prior GET, so no CSRF cookie in the jar.
	_, err := client.StartAttempt(context.Background(), "quiz-1")
	require.Error(t, err)
	assert.Equal(t, api.KindSessionExpired, api.KindOf(err))
}

func TestRegistrationGateAndAttemptLimit(t *testing.T) {
	quiz := testQuiz()
	quiz.RequiresRegistration = true
	quiz.MaxAttempts = 1
	client, _ := newTestStack(t, quiz)

	ctx := context.Background()
	_, err := client.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)

	_, err = client.StartAttempt(ctx, "quiz-1")
	require.Error(t, err)
	assert.Equal(t, api.KindRejected, api.KindOf(err))

	require.NoError(t, client.Register(ctx, "quiz-1"))
	_, err = client.StartAttempt(ctx, "quiz-1")
	require.NoError(t, err)

	_, err = client.StartAttempt(ctx, "quiz-1")
	require.Error(t, err)
	assert.Equal(t, api.KindRejected, api.KindOf(err))
}

func TestViolationReportFinalizesAttemptServerSide(t *testing.T) {
	client, _ := newTestStack(t, testQuiz())

	ctx := context.Background()
	_, err := client.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	attempt, err := client.StartAttempt(ctx, "quiz-1")
	require.NoError(t, err)

	err = client.ReportEvent(ctx, attempt.ID, model.ProctorEvent{
		Kind:       model.EventTabSwitch,
		Reason:     "window lost focus",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	current, err := client.CurrentQuestion(ctx, attempt.ID)
	require.NoError(t, err)
	assert.True(t, current.Completed)

	result, err := client.Results(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonPolicyViolation, result.Reason)
	assert.False(t, result.Passed)
}
