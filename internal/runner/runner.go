package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/quizforge/quiztaker/internal/service"
	"github.com/rs/zerolog/log"
)

// questionView is what the render loop needs to draw one question.
type questionView struct {
	question         *model.Question
	number           int
	remainingSeconds int
}

// Runner is the terminal front end for one quiz-taking session: instructions,
// details and registration, the question loop, and the results exit point. It
// wires the attempt controller, both countdown timers and the integrity
// monitor together and tears all three down on any terminal transition.
type Runner struct {
	cfg  *config.Config
	ctrl *service.AttemptController
	in   io.Reader
	out  io.Writer

	questionTimer *service.Countdown
	quizTimer     *service.Countdown
	monitor       *service.IntegrityMonitor
	inputEvents   *service.ChannelSource

	questions chan questionView
	finalized chan model.FinalizeReason
	notices   chan string
	blocked   chan string
}

func New(backend service.Backend, quizID string, cfg *config.Config, in io.Reader, out io.Writer) *Runner {
	r := &Runner{
		cfg:         cfg,
		in:          in,
		out:         out,
		inputEvents: service.NewChannelSource(),
		questions:   make(chan questionView, 4),
		finalized:   make(chan model.FinalizeReason, 1),
		notices:     make(chan string, 8),
		blocked:     make(chan string, 1),
	}

	hooks := service.Hooks{
		OnQuestion: func(q *model.Question, number, remaining int) {
			r.questionTimer.Reset(remaining)
			if secs := r.ctrl.RemainingQuizSeconds(); secs >= 0 {
				// Re-anchor to the server start timestamp on every question so
				// suspended ticks never extend the real deadline.
				r.quizTimer.Sync(secs)
			}
			r.questions <- questionView{question: q, number: number, remainingSeconds: remaining}
		},
		OnNotice: func(msg string) {
			select {
			case r.notices <- msg:
			default:
			}
		},
		OnBlocked: func(msg string) {
			select {
			case r.blocked <- msg:
			default:
			}
		},
		OnFinalized: func(reason model.FinalizeReason) {
			r.finalized <- reason
		},
	}

	r.ctrl = service.NewAttemptController(backend, quizID, hooks, cfg.Timers.RetryDelay)

	r.questionTimer = service.NewCountdown("question", nil, r.ctrl.Suspended, nil, func() {
		r.ctrl.QuestionExpired(context.Background())
	})
	r.quizTimer = service.NewCountdown("quiz",
		[]int{cfg.Timers.FirstWarningSeconds, cfg.Timers.FinalWarningSeconds},
		r.ctrl.Suspended,
		func(mark int) {
			r.printf("\n*** Warning: %s of quiz time remaining ***\n", formatSeconds(mark))
		},
		func() {
			r.ctrl.QuizExpired(context.Background())
		})

	r.monitor = service.NewIntegrityMonitor(func(event service.ViolationEvent) {
		r.ctrl.ReportViolation(context.Background(), event.Kind, event.Reason)
	}, NewSignalSource(), r.inputEvents)

	return r
}

// Run drives a full session and blocks until the attempt reaches a terminal
// state or the user walks away before starting.
func (r *Runner) Run(ctx context.Context) error {
	defer r.teardown()

	lines := r.readLines(ctx)

	if err := r.ctrl.LoadQuizDetails(ctx); err != nil {
		r.printf("Could not load quiz: %v\n", err)
		return err
	}
	r.printInstructions()
	if _, ok := r.awaitLine(ctx, lines); !ok {
		return ctx.Err()
	}

	proceed, err := r.detailsLoop(ctx, lines)
	if err != nil || !proceed {
		return err
	}

	if err := r.ctrl.StartQuiz(ctx); err != nil {
		r.printf("Could not start quiz: %v\n", err)
		return err
	}

	// hasStarted: the first question is fetched, so proctoring and the
	// quiz-wide clock begin now.
	r.monitor.Start(ctx)
	r.questionTimer.Start()
	if secs := r.ctrl.RemainingQuizSeconds(); secs >= 0 {
		quiz := r.ctrl.Quiz()
		r.quizTimer.Reset(*quiz.Quiz.TimeLimitMinutes * 60)
		r.quizTimer.Sync(secs)
		r.quizTimer.Start()
	}

	return r.questionLoop(ctx, lines)
}

func (r *Runner) detailsLoop(ctx context.Context, lines <-chan string) (bool, error) {
	for {
		details := r.ctrl.Quiz()
		r.printDetails(details)

		if details.Quiz.RequiresRegistration && !details.IsRegistered {
			r.printf("This quiz requires registration. Register now? [y/n] ")
			line, ok := r.awaitLine(ctx, lines)
			if !ok {
				return false, ctx.Err()
			}
			if strings.EqualFold(strings.TrimSpace(line), "y") {
				if err := r.ctrl.Register(ctx); err != nil {
					r.printf("Registration failed: %v. Try again.\n", err)
					continue
				}
				r.printf("Registered.\n")
			}
			continue
		}

		r.printf("Press Enter to start the quiz (q to quit): ")
		line, ok := r.awaitLine(ctx, lines)
		if !ok {
			return false, ctx.Err()
		}
		if strings.EqualFold(strings.TrimSpace(line), "q") {
			return false, nil
		}
		return true, nil
	}
}

func (r *Runner) questionLoop(ctx context.Context, lines <-chan string) error {
	var current questionView
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-r.notices:
			r.printf("\n[!] %s\n", msg)

		case msg := <-r.blocked:
			r.printf("\n[X] %s\n", msg)
			return service.ErrSessionExpired

		case view := <-r.questions:
			current = view
			r.printQuestion(view)

		case reason := <-r.finalized:
			return r.showResults(reason)

		case line := <-lines:
			if r.handleInput(ctx, line, current) {
				continue
			}
		}
	}
}

// handleInput maps a line of input onto the current question. Control
// sequences are the terminal stand-in for blocked developer-tool shortcuts:
// they are intercepted and reported instead of interpreted.
func (r *Runner) handleInput(ctx context.Context, line string, current questionView) bool {
	if containsControl(line) {
		r.inputEvents.C <- service.ViolationEvent{
			Kind:   model.EventBlockedKey,
			Reason: "blocked control sequence in input",
		}
		return true
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return true
	case strings.EqualFold(trimmed, "s"):
		if err := r.ctrl.Skip(ctx); err != nil {
			log.Warn().Err(err).Msg("Skip failed")
		}
	default:
		choice, err := strconv.Atoi(trimmed)
		if err != nil || current.question == nil || choice < 1 || choice > len(current.question.Options) {
			r.printf("Enter an option number, or s to skip.\n")
			return true
		}
		r.ctrl.SelectOption(current.question.Options[choice-1].ID)
		if err := r.ctrl.Submit(ctx); err != nil {
			log.Warn().Err(err).Msg("Submit failed")
		}
	}
	return true
}

func (r *Runner) showResults(reason model.FinalizeReason) error {
	switch reason {
	case model.ReasonPolicyViolation:
		r.printf("\nThe attempt was terminated for a policy violation.\n")
		time.Sleep(2 * time.Second)
	case model.ReasonTimeExpired:
		r.printf("\nTime is up. Submitting your attempt.\n")
		time.Sleep(2 * time.Second)
	default:
		r.printf("\nQuiz complete.\n")
	}

	resultCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := r.ctrl.Results(resultCtx)
	if err != nil {
		// The redirect to results is unconditional; a fetch failure must not
		// trap the user on a dead screen.
		r.printf("Results are not available yet (%v). Reason: %s\n", err, reason)
		return nil
	}
	r.printResult(result, reason)
	return nil
}

func (r *Runner) teardown() {
	r.questionTimer.Stop()
	r.quizTimer.Stop()
	r.monitor.Stop()
	r.ctrl.Close()
}

func (r *Runner) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	scanner := bufio.NewScanner(r.in)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (r *Runner) awaitLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

func (r *Runner) printInstructions() {
	r.printf("==================================================\n")
	r.printf("  Quiz rules\n")
	r.printf("==================================================\n")
	r.printf("- Each question has its own time limit; unanswered questions are skipped when it runs out.\n")
	r.printf("- Leaving the quiz window or using blocked shortcuts ends the attempt immediately.\n")
	r.printf("- Once the quiz clock runs out the whole attempt is submitted as-is.\n\n")
	r.printf("Press Enter to continue.\n")
}

func (r *Runner) printDetails(details *model.QuizDetails) {
	quiz := details.Quiz
	r.printf("\n%s\n", quiz.Title)
	if quiz.Description != "" {
		r.printf("%s\n", quiz.Description)
	}
	r.printf("Questions: %d | Passing score: %.0f%%", quiz.TotalQuestions, quiz.PassingScorePercentage)
	if quiz.TimeLimitMinutes != nil {
		r.printf(" | Time limit: %d min", *quiz.TimeLimitMinutes)
	}
	if quiz.MaxAttempts > 0 {
		r.printf(" | Attempts used: %d/%d", details.AttemptsUsed, quiz.MaxAttempts)
	}
	r.printf("\n")
}

func (r *Runner) printQuestion(view questionView) {
	total := 0
	if attempt := r.ctrl.Attempt(); attempt != nil {
		total = attempt.TotalQuestions
	}
	r.printf("\n--- Question %d of %d (%s) ---\n", view.number, total, formatSeconds(view.remainingSeconds))
	r.printf("%s\n", view.question.Text)
	if view.question.CodeSnippet != nil {
		r.printf("\n%s\n", *view.question.CodeSnippet)
	}
	for i, opt := range view.question.Options {
		r.printf("  %d) %s\n", i+1, opt.Text)
	}
	r.printf("Answer [1-%d, s to skip]: ", len(view.question.Options))
}

func (r *Runner) printResult(result *model.AttemptResult, reason model.FinalizeReason) {
	r.printf("\n==================================================\n")
	r.printf("  Results: %s\n", result.QuizTitle)
	r.printf("==================================================\n")
	r.printf("Score: %d/%d (%.1f%%)\n", result.Score, result.MaxScore, result.Percentage)
	if result.Passed {
		r.printf("Outcome: PASSED\n")
	} else {
		r.printf("Outcome: FAILED\n")
	}
	r.printf("Reason: %s\n", reason)
	for _, qr := range result.QuestionResults {
		mark := "✗"
		if qr.Correct {
			mark = "✓"
		}
		if qr.Skipped {
			mark = "-"
		}
		r.printf("  %s %s (%d/%d pts)\n", mark, qr.QuestionID, qr.PointsAwarded, qr.PointsMax)
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func containsControl(s string) bool {
	for _, ch := range s {
		if unicode.IsControl(ch) && ch != '\t' {
			return true
		}
	}
	return false
}

func formatSeconds(total int) string {
	if total >= 60 {
		return fmt.Sprintf("%dm%02ds", total/60, total%60)
	}
	return fmt.Sprintf("%ds", total)
}
