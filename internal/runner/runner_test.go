package runner

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/api"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/quizforge/quiztaker/internal/practice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureQuiz() *practice.Quiz {
	limit := 10
	return &practice.Quiz{
		Quiz: model.Quiz{
			ID:                     "quiz-1",
			Title:                  "Runner Quiz",
			TimeLimitMinutes:       &limit,
			PassingScorePercentage: 60,
		},
		Questions: []practice.Question{
			{
				Question: model.Question{
					ID: "q1", Text: "one", Points: 1, TimeLimitSeconds: 60,
					Options: []model.Option{{ID: "q1-a", Text: "right"}, {ID: "q1-b", Text: "wrong"}},
				},
				CorrectOptionID: "q1-a",
			},
			{
				Question: model.Question{
					ID: "q2", Text: "two", Points: 1, TimeLimitSeconds: 60,
					Options: []model.Option{{ID: "q2-a", Text: "right"}, {ID: "q2-b", Text: "wrong"}},
				},
				CorrectOptionID: "q2-a",
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

// promptWriter captures session output and signals whenever a prompt that
// expects user input is printed, so the test can pace its answers.
type promptWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	prompts chan string
}

var promptMarkers = []string{
	"Press Enter to continue",
	"Press Enter to start",
	"Answer [",
}

func (w *promptWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)
	w.mu.Unlock()
	for _, marker := range promptMarkers {
		if bytes.Contains(p, []byte(marker)) {
			select {
			case w.prompts <- marker:
			default:
			}
		}
	}
	return len(p), nil
}

func (w *promptWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestRunnerDrivesFullSessionToResults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Client.Timeout = 5 * time.Second
	cfg.Client.CSRFCookieName = "csrftoken"
	cfg.Client.CSRFHeaderName = "X-CSRF-Token"
	cfg.Timers.FirstWarningSeconds = 300
	cfg.Timers.FinalWarningSeconds = 60
	cfg.Timers.RetryDelay = 20 * time.Millisecond

	store := practice.NewStore(fixtureQuiz())
	engine := practice.NewEngine()
	practice.NewServer(store, cfg).RegisterRoutes(engine)
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	cfg.Client.BaseURL = ts.URL

	client, err := api.NewClient(cfg)
	require.NoError(t, err)

	in, inWriter := io.Pipe()
	t.Cleanup(func() { inWriter.Close() })
	out := &promptWriter{prompts: make(chan string, 16)}

	session := New(client, "quiz-1", cfg, in, out)

	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background()) }()

	feed := func(line string) {
		t.Helper()
		select {
		case <-out.prompts:
		case <-time.After(5 * time.Second):
			t.Fatalf("no prompt before input %q; output so far:\n%s", line, out.String())
		}
		_, err := io.WriteString(inWriter, line+"\n")
		require.NoError(t, err)
	}

	feed("") // instructions
	feed("") // details, start the quiz
	feed("1")
	feed("1")
	feed("1")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("session did not finish; output so far:\n%s", out.String())
	}

	output := out.String()
	assert.Contains(t, output, "Question 1 of 3")
	assert.Contains(t, output, "Question 3 of 3")
	assert.Contains(t, output, "Results: Runner Quiz")
	assert.Contains(t, output, "Outcome: PASSED")
}

func TestRunnerQuitsFromDetailsWithoutStarting(t *testing.T) {
	cfg := &config.Config{}
	cfg.Client.Timeout = 5 * time.Second
	cfg.Client.CSRFCookieName = "csrftoken"
	cfg.Client.CSRFHeaderName = "X-CSRF-Token"
	cfg.Timers.RetryDelay = 20 * time.Millisecond

	store := practice.NewStore(fixtureQuiz())
	engine := practice.NewEngine()
	practice.NewServer(store, cfg).RegisterRoutes(engine)
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	cfg.Client.BaseURL = ts.URL

	client, err := api.NewClient(cfg)
	require.NoError(t, err)

	in, inWriter := io.Pipe()
	t.Cleanup(func() { inWriter.Close() })
	out := &promptWriter{prompts: make(chan string, 16)}

	session := New(client, "quiz-1", cfg, in, out)

	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background()) }()

	feed := func(line string) {
		t.Helper()
		select {
		case <-out.prompts:
		case <-time.After(5 * time.Second):
			t.Fatalf("no prompt before input %q", line)
		}
		_, err := io.WriteString(inWriter, line+"\n")
		require.NoError(t, err)
	}

	feed("") // instructions
	feed("q")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not exit after quitting")
	}

	details, err := store.QuizDetails("quiz-1")
	require.NoError(t, err)
	assert.Zero(t, details.AttemptsUsed, "quitting from details must not start an attempt")
}
