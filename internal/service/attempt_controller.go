package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quizforge/quiztaker/internal/api"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/rs/zerolog/log"
)

// AttemptState is the controller's position in the quiz-taking lifecycle.
type AttemptState string

const (
	StateInstructions AttemptState = "instructions"
	StateDetails      AttemptState = "details"
	StateStarting     AttemptState = "starting"
	StateInQuestion   AttemptState = "in_question"
	StateSubmitting   AttemptState = "submitting"
	StateAdvancing    AttemptState = "advancing"
	StateFinalizing   AttemptState = "finalizing"
	StateTerminal     AttemptState = "terminal"
)

var (
	ErrNotRegistered     = errors.New("quiz requires registration before starting")
	ErrAlreadyRegistered = errors.New("already registered for this quiz")
	ErrInvalidState      = errors.New("operation not valid in current state")
	ErrSessionExpired    = errors.New("session expired, restart required")
)

// Backend is the slice of the LMS API the attempt flow consumes.
type Backend interface {
	GetQuiz(ctx context.Context, quizID string) (*model.QuizDetails, error)
	Register(ctx context.Context, quizID string) error
	StartAttempt(ctx context.Context, quizID string) (*model.Attempt, error)
	CurrentQuestion(ctx context.Context, attemptID string) (*model.CurrentQuestion, error)
	SubmitAnswer(ctx context.Context, attemptID string, sub model.AnswerSubmission) (*model.SubmitOutcome, error)
	ReportEvent(ctx context.Context, attemptID string, event model.ProctorEvent) error
	Results(ctx context.Context, attemptID string) (*model.AttemptResult, error)
}

// Hooks are the controller's outbound notifications. All hooks are optional
// and may be invoked from timer or monitor goroutines.
type Hooks struct {
	// OnQuestion fires each time a new question becomes current, with the
	// server-reported remaining seconds for that question.
	OnQuestion func(q *model.Question, number, remainingSeconds int)
	// OnNotice carries transient, toast-style messages.
	OnNotice func(message string)
	// OnBlocked carries a non-recoverable error; the session must be restarted.
	OnBlocked func(message string)
	// OnFinalized fires exactly once per attempt, on every terminal path.
	OnFinalized func(reason model.FinalizeReason)
}

// AttemptController owns the attempt lifecycle: load details, register, start,
// fetch/submit/skip questions, finalize. It is the only component that mutates
// attempt and question state; timers and the integrity monitor call back into
// it. Safe for concurrent use.
type AttemptController struct {
	backend    Backend
	quizID     string
	hooks      Hooks
	retryDelay time.Duration
	now        func() time.Time

	mu                sync.Mutex
	state             AttemptState
	quiz              *model.QuizDetails
	attempt           *model.Attempt
	question          *model.Question
	questionStartedAt time.Time
	selected          *string
	submitting        bool
	registering       bool
	finalized         bool
	blocked           bool
	closed            bool
}

func NewAttemptController(backend Backend, quizID string, hooks Hooks, retryDelay time.Duration) *AttemptController {
	return NewAttemptControllerWithClock(backend, quizID, hooks, retryDelay, time.Now)
}

// NewAttemptControllerWithClock allows deterministic timestamps in tests.
func NewAttemptControllerWithClock(backend Backend, quizID string, hooks Hooks, retryDelay time.Duration, now func() time.Time) *AttemptController {
	return &AttemptController{
		backend:    backend,
		quizID:     quizID,
		hooks:      hooks,
		retryDelay: retryDelay,
		now:        now,
		state:      StateInstructions,
	}
}

func (c *AttemptController) State() AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *AttemptController) Quiz() *model.QuizDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiz == nil {
		return nil
	}
	snapshot := *c.quiz
	return &snapshot
}

func (c *AttemptController) Attempt() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return nil
	}
	snapshot := *c.attempt
	return &snapshot
}

func (c *AttemptController) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// Close marks the session abandoned. Pending retry timers become no-ops, so
// an unfinalized attempt cannot fire network calls after teardown.
func (c *AttemptController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Suspended reports whether timers should hold their ticks: while a submission
// is in flight and once the attempt is finalized.
func (c *AttemptController) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting || c.finalized || c.state != StateInQuestion
}

// LoadQuizDetails fetches quiz metadata and registration status. Valid before
// an attempt has started; a failure halts progression past the details view.
func (c *AttemptController) LoadQuizDetails(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInstructions && c.state != StateDetails {
		c.mu.Unlock()
		return fmt.Errorf("%w: load details in %s", ErrInvalidState, c.state)
	}
	c.mu.Unlock()

	details, err := c.backend.GetQuiz(ctx, c.quizID)
	if err != nil {
		log.Error().Err(err).Str("quiz_id", c.quizID).Msg("Failed to load quiz details")
		return fmt.Errorf("loading quiz %s: %w", c.quizID, err)
	}

	c.mu.Lock()
	c.quiz = details
	c.state = StateDetails
	c.mu.Unlock()
	return nil
}

// Register enrolls the user for a registration-gated quiz. The view state is
// unchanged on failure so the user may retry.
func (c *AttemptController) Register(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state != StateDetails || c.quiz == nil:
		c.mu.Unlock()
		return fmt.Errorf("%w: register in %s", ErrInvalidState, c.state)
	case !c.quiz.Quiz.RequiresRegistration:
		c.mu.Unlock()
		return fmt.Errorf("%w: quiz does not require registration", ErrInvalidState)
	case c.quiz.IsRegistered:
		c.mu.Unlock()
		return ErrAlreadyRegistered
	case c.registering:
		c.mu.Unlock()
		return nil
	}
	c.registering = true
	c.mu.Unlock()

	err := c.backend.Register(ctx, c.quizID)

	c.mu.Lock()
	c.registering = false
	if err == nil {
		c.quiz.IsRegistered = true
	}
	c.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("quiz_id", c.quizID).Msg("Registration failed")
		return fmt.Errorf("registering for quiz %s: %w", c.quizID, err)
	}
	return nil
}

// StartQuiz requests a new attempt and loads the first question. Rejected
// client-side, with no network call, when registration is still outstanding.
func (c *AttemptController) StartQuiz(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDetails || c.quiz == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrInvalidState, c.state)
	}
	if c.quiz.Quiz.RequiresRegistration && !c.quiz.IsRegistered {
		c.mu.Unlock()
		return ErrNotRegistered
	}
	c.state = StateStarting
	c.mu.Unlock()

	attempt, err := c.backend.StartAttempt(ctx, c.quizID)
	if err != nil {
		c.mu.Lock()
		c.state = StateDetails
		c.mu.Unlock()
		log.Error().Err(err).Str("quiz_id", c.quizID).Msg("Failed to start attempt")
		return fmt.Errorf("starting quiz %s: %w", c.quizID, err)
	}

	c.mu.Lock()
	c.attempt = attempt
	c.mu.Unlock()
	log.Info().Str("attempt_id", attempt.ID).Int("total_questions", attempt.TotalQuestions).Msg("Attempt started")

	return c.LoadCurrentQuestion(ctx)
}

// LoadCurrentQuestion fetches the question the server says is current. The
// server's remaining-time figure is authoritative, not the local clock. A
// completed signal transitions straight to terminal.
func (c *AttemptController) LoadCurrentQuestion(ctx context.Context) error {
	c.mu.Lock()
	if c.finalized || c.closed || c.attempt == nil {
		c.mu.Unlock()
		return nil
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	current, err := c.backend.CurrentQuestion(ctx, attemptID)
	if err != nil {
		if api.KindOf(err) == api.KindTransient {
			c.notice("Connection problem, retrying...")
			c.scheduleRetry()
			return nil
		}
		log.Error().Err(err).Str("attempt_id", attemptID).Msg("Failed to load current question")
		return fmt.Errorf("loading current question: %w", err)
	}

	if current.Completed {
		c.finalize(ctx, model.ReasonCompleted, false)
		return nil
	}

	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return nil
	}
	c.question = current.Question
	c.selected = nil
	c.questionStartedAt = c.now()
	if current.QuestionNumber > c.attempt.CurrentQuestionNumber {
		c.attempt.CurrentQuestionNumber = current.QuestionNumber
	}
	number := c.attempt.CurrentQuestionNumber
	c.state = StateInQuestion
	question := c.question
	c.mu.Unlock()

	if c.hooks.OnQuestion != nil {
		c.hooks.OnQuestion(question, number, current.RemainingSeconds)
	}
	return nil
}

// SelectOption records the user's choice for the current question. Selection
// is ephemeral and resets when the next question loads.
func (c *AttemptController) SelectOption(optionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInQuestion {
		return
	}
	for _, opt := range c.question.Options {
		if opt.ID == optionID {
			c.selected = &optionID
			return
		}
	}
}

func (c *AttemptController) Selection() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Submit sends the current selection. A submit with nothing selected counts
// as a skip.
func (c *AttemptController) Submit(ctx context.Context) error {
	c.mu.Lock()
	selected := c.selected
	c.mu.Unlock()
	return c.submit(ctx, selected, false, selected == nil)
}

// Skip sends an explicit skip for the current question.
func (c *AttemptController) Skip(ctx context.Context) error {
	return c.submit(ctx, nil, false, true)
}

// QuestionExpired is the question countdown's at-zero callback: auto-submit
// whatever is selected, or a skip when nothing is.
func (c *AttemptController) QuestionExpired(ctx context.Context) {
	c.mu.Lock()
	selected := c.selected
	c.mu.Unlock()
	if selected == nil {
		c.notice("Time up - question skipped")
	} else {
		c.notice("Time up - answer submitted automatically")
	}
	if err := c.submit(ctx, selected, true, selected == nil); err != nil {
		log.Warn().Err(err).Msg("Auto-submit failed")
	}
}

// QuizExpired is the quiz countdown's at-zero callback. It bypasses the
// per-question submit flow entirely and terminates the attempt, reporting
// best-effort and redirecting regardless of network outcome.
func (c *AttemptController) QuizExpired(ctx context.Context) {
	c.mu.Lock()
	if c.finalized || c.attempt == nil {
		c.mu.Unlock()
		return
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	c.reportEvent(attemptID, model.ProctorEvent{
		Kind:       model.EventTimeExpired,
		Reason:     "quiz time limit reached",
		OccurredAt: c.now(),
	})
	c.notice("Quiz time has expired")
	c.finalize(ctx, model.ReasonTimeExpired, true)
}

// ReportViolation is the integrity monitor's callback. Termination is
// unconditional; the backend report is fire-and-forget.
func (c *AttemptController) ReportViolation(ctx context.Context, kind model.EventKind, reason string) {
	c.mu.Lock()
	if c.finalized || c.attempt == nil {
		c.mu.Unlock()
		return
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	log.Warn().Str("kind", string(kind)).Str("reason", reason).Msg("Policy violation detected")
	c.reportEvent(attemptID, model.ProctorEvent{Kind: kind, Reason: reason, OccurredAt: c.now()})
	c.notice("Policy violation: " + reason)
	c.finalize(ctx, model.ReasonPolicyViolation, false)
}

// Results fetches the outcome for the finalized attempt.
func (c *AttemptController) Results(ctx context.Context) (*model.AttemptResult, error) {
	c.mu.Lock()
	if c.attempt == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no attempt", ErrInvalidState)
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()
	return c.backend.Results(ctx, attemptID)
}

// RemainingQuizSeconds computes quiz time left anchored to the server-issued
// start timestamp, so drift or reload never extends the real deadline.
// Returns -1 when the quiz has no time limit.
func (c *AttemptController) RemainingQuizSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiz == nil || c.quiz.Quiz.TimeLimitMinutes == nil || c.attempt == nil {
		return -1
	}
	budget := *c.quiz.Quiz.TimeLimitMinutes * 60
	elapsed := int(c.now().Sub(c.attempt.StartedAt).Seconds())
	remaining := budget - elapsed
	if remaining < 0 {
		return 0
	}
	if remaining > budget {
		return budget
	}
	return remaining
}

func (c *AttemptController) submit(ctx context.Context, optionID *string, auto, skipped bool) error {
	c.mu.Lock()
	if c.finalized || c.blocked || c.state != StateInQuestion || c.submitting || c.question == nil {
		// Re-entrancy guard: a second submit while one is in flight is a no-op.
		c.mu.Unlock()
		return nil
	}
	c.submitting = true
	c.state = StateSubmitting
	sub := model.AnswerSubmission{
		QuestionID:       c.question.ID,
		SelectedOptionID: optionID,
		ElapsedSeconds:   int(c.now().Sub(c.questionStartedAt).Seconds()),
		AutoSubmitted:    auto,
		Skipped:          skipped,
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	outcome, err := c.backend.SubmitAnswer(ctx, attemptID, sub)

	c.mu.Lock()
	c.submitting = false
	if c.finalized {
		c.mu.Unlock()
		return nil
	}

	if err != nil {
		switch api.KindOf(err) {
		case api.KindAlreadySubmitted:
			// Auto/manual race: the answer is recorded, move on as success.
			log.Debug().Str("question_id", sub.QuestionID).Msg("Answer already recorded, advancing")
			c.state = StateAdvancing
			c.mu.Unlock()
			return c.LoadCurrentQuestion(ctx)
		case api.KindSessionExpired:
			c.blocked = true
			c.state = StateInQuestion
			c.mu.Unlock()
			if c.hooks.OnBlocked != nil {
				c.hooks.OnBlocked("Your session has expired. Please restart the quiz application.")
			}
			return ErrSessionExpired
		default:
			c.state = StateInQuestion
			c.mu.Unlock()
			log.Warn().Err(err).Str("question_id", sub.QuestionID).Msg("Submit failed, will retry question load")
			c.notice("Could not submit answer, retrying...")
			c.scheduleRetry()
			return nil
		}
	}

	if outcome.CurrentQuestionNumber > c.attempt.CurrentQuestionNumber {
		c.attempt.CurrentQuestionNumber = outcome.CurrentQuestionNumber
	}
	// The server reports total+1 after the last answer; the attempt's own
	// progress figure never exceeds the question count.
	if c.attempt.CurrentQuestionNumber > c.attempt.TotalQuestions {
		c.attempt.CurrentQuestionNumber = c.attempt.TotalQuestions
	}
	lastAnswered := outcome.Completed
	if !lastAnswered {
		c.state = StateAdvancing
	}
	c.mu.Unlock()

	if lastAnswered {
		c.finalize(ctx, model.ReasonCompleted, true)
		return nil
	}
	return c.LoadCurrentQuestion(ctx)
}

// finalize is the single authoritative cancellation point. It runs at most
// once; the confirm call's outcome never gates the terminal transition.
func (c *AttemptController) finalize(ctx context.Context, reason model.FinalizeReason, confirm bool) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return
	}
	c.finalized = true
	c.state = StateFinalizing
	var attemptID string
	if c.attempt != nil {
		attemptID = c.attempt.ID
	}
	c.mu.Unlock()

	if confirm && attemptID != "" {
		if _, err := c.backend.CurrentQuestion(ctx, attemptID); err != nil {
			log.Debug().Err(err).Msg("Completion confirm call failed, finalizing anyway")
		}
	}

	c.mu.Lock()
	c.state = StateTerminal
	c.mu.Unlock()

	log.Info().Str("reason", string(reason)).Str("attempt_id", attemptID).Msg("Attempt finalized")
	if c.hooks.OnFinalized != nil {
		c.hooks.OnFinalized(reason)
	}
}

// reportEvent is fire-and-forget: failure must never block termination.
func (c *AttemptController) reportEvent(attemptID string, event model.ProctorEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.backend.ReportEvent(ctx, attemptID, event); err != nil {
			log.Debug().Err(err).Str("kind", string(event.Kind)).Msg("Proctor event report failed")
		}
	}()
}

func (c *AttemptController) scheduleRetry() {
	time.AfterFunc(c.retryDelay, func() {
		c.mu.Lock()
		stale := c.finalized || c.closed
		c.mu.Unlock()
		if stale {
			return
		}
		if err := c.LoadCurrentQuestion(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Retry of question load failed")
		}
	})
}

func (c *AttemptController) notice(message string) {
	if c.hooks.OnNotice != nil {
		c.hooks.OnNotice(message)
	}
}
