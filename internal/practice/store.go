package practice

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quiztaker/internal/dto"
	"github.com/quizforge/quiztaker/internal/model"
)

// Quiz is a fixture quiz: the public descriptor plus the full question list
// with answer keys. Correctness never leaves the store while answering.
type Quiz struct {
	model.Quiz
	Questions []Question
}

type Question struct {
	model.Question
	CorrectOptionID string
}

// Error is a store-level failure carrying the wire code the handlers return.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func errNotFound(what string) *Error {
	return &Error{Status: http.StatusNotFound, Code: dto.CodeNotFound, Message: what + " not found"}
}

type answerRecord struct {
	optionID       *string
	skipped        bool
	autoSubmitted  bool
	elapsedSeconds int
}

type attemptSession struct {
	id                string
	quizID            string
	startedAt         time.Time
	questionIndex     int // 0-based index of the current question
	questionStartedAt time.Time
	answers           map[string]answerRecord
	events            []model.ProctorEvent
	status            model.AttemptStatus
	reason            model.FinalizeReason
}

func (a *attemptSession) completed() bool {
	return a.status == model.AttemptCompleted
}

func (a *attemptSession) complete(reason model.FinalizeReason) {
	a.status = model.AttemptCompleted
	a.reason = reason
}

// Store holds quizzes, registrations and attempts in memory. It plays the
// role the repository layer would against a database, but the practice
// backend is deliberately ephemeral.
type Store struct {
	mu         sync.Mutex
	quizzes    map[string]*Quiz
	registered map[string]bool
	attempts   map[string]*attemptSession
	now        func() time.Time
}

func NewStore(quizzes ...*Quiz) *Store {
	return NewStoreWithClock(time.Now, quizzes...)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time, quizzes ...*Quiz) *Store {
	s := &Store{
		quizzes:    make(map[string]*Quiz),
		registered: make(map[string]bool),
		attempts:   make(map[string]*attemptSession),
		now:        now,
	}
	for _, quiz := range quizzes {
		quiz.TotalQuestions = len(quiz.Questions)
		s.quizzes[quiz.ID] = quiz
	}
	return s
}

func (s *Store) QuizDetails(quizID string) (*model.QuizDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, errNotFound("quiz")
	}
	return &model.QuizDetails{
		Quiz:         quiz.Quiz,
		IsRegistered: s.registered[quizID],
		AttemptsUsed: s.attemptCountLocked(quizID),
	}, nil
}

func (s *Store) Register(quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return errNotFound("quiz")
	}
	s.registered[quizID] = true
	return nil
}

func (s *Store) StartAttempt(quizID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, errNotFound("quiz")
	}
	if quiz.RequiresRegistration && !s.registered[quizID] {
		return nil, &Error{Status: http.StatusForbidden, Code: dto.CodeRegistrationRequired, Message: "register before starting this quiz"}
	}
	if quiz.MaxAttempts > 0 && s.attemptCountLocked(quizID) >= quiz.MaxAttempts {
		return nil, &Error{Status: http.StatusForbidden, Code: dto.CodeAttemptLimitReached, Message: "no attempts remaining"}
	}

	now := s.now()
	session := &attemptSession{
		id:                uuid.NewString(),
		quizID:            quizID,
		startedAt:         now,
		questionStartedAt: now,
		answers:           make(map[string]answerRecord),
		status:            model.AttemptInProgress,
	}
	s.attempts[session.id] = session

	return &model.Attempt{
		ID:                    session.id,
		StartedAt:             session.startedAt,
		TotalQuestions:        len(quiz.Questions),
		CurrentQuestionNumber: 1,
	}, nil
}

// CurrentQuestion returns the in-flight question with the server-computed
// remaining time, or the completed signal once the attempt is done.
func (s *Store) CurrentQuestion(attemptID string) (*model.CurrentQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, quiz, err := s.sessionLocked(attemptID)
	if err != nil {
		return nil, err
	}

	if session.completed() || session.questionIndex >= len(quiz.Questions) {
		return &model.CurrentQuestion{Completed: true}, nil
	}

	s.expireOverdueLocked(session, quiz)
	if session.completed() || session.questionIndex >= len(quiz.Questions) {
		return &model.CurrentQuestion{Completed: true}, nil
	}

	question := quiz.Questions[session.questionIndex]
	remaining := question.TimeLimitSeconds - int(s.now().Sub(session.questionStartedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	public := question.Question
	return &model.CurrentQuestion{
		QuestionNumber:   session.questionIndex + 1,
		RemainingSeconds: remaining,
		Question:         &public,
	}, nil
}

func (s *Store) SubmitAnswer(attemptID string, req dto.SubmitAnswerRequest) (*model.SubmitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, quiz, err := s.sessionLocked(attemptID)
	if err != nil {
		return nil, err
	}
	if session.completed() {
		return nil, &Error{Status: http.StatusConflict, Code: dto.CodeAttemptFinalized, Message: "attempt is finalized"}
	}
	if session.questionIndex >= len(quiz.Questions) {
		return &model.SubmitOutcome{Completed: true, CurrentQuestionNumber: session.questionIndex + 1}, nil
	}

	current := quiz.Questions[session.questionIndex]
	if req.QuestionID != current.ID {
		if _, answered := session.answers[req.QuestionID]; answered {
			return nil, &Error{Status: http.StatusConflict, Code: dto.CodeAnswerAlreadySubmitted, Message: "answer already recorded for this question"}
		}
		return nil, errNotFound("question")
	}
	if _, answered := session.answers[current.ID]; answered {
		return nil, &Error{Status: http.StatusConflict, Code: dto.CodeAnswerAlreadySubmitted, Message: "answer already recorded for this question"}
	}

	session.answers[current.ID] = answerRecord{
		optionID:       req.SelectedOptionID,
		skipped:        req.Skipped || req.SelectedOptionID == nil,
		autoSubmitted:  req.AutoSubmitted,
		elapsedSeconds: req.ElapsedSeconds,
	}
	session.questionIndex++
	session.questionStartedAt = s.now()

	completed := session.questionIndex >= len(quiz.Questions)
	if completed {
		session.complete(model.ReasonCompleted)
	}
	return &model.SubmitOutcome{
		Completed:             completed,
		CurrentQuestionNumber: session.questionIndex + 1,
	}, nil
}

// RecordEvent logs a proctoring event. Violations and time expiry finalize
// the attempt server-side as well.
func (s *Store) RecordEvent(attemptID string, event model.ProctorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, _, err := s.sessionLocked(attemptID)
	if err != nil {
		return err
	}
	session.events = append(session.events, event)
	if !session.completed() {
		if event.Kind == model.EventTimeExpired {
			session.complete(model.ReasonTimeExpired)
		} else {
			session.complete(model.ReasonPolicyViolation)
		}
	}
	return nil
}

func (s *Store) Results(attemptID string) (*model.AttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, quiz, err := s.sessionLocked(attemptID)
	if err != nil {
		return nil, err
	}

	result := model.AttemptResult{
		AttemptID: session.id,
		QuizTitle: quiz.Title,
		Reason:    session.reason,
	}
	if result.Reason == "" {
		result.Reason = model.ReasonCompleted
	}

	for _, question := range quiz.Questions {
		points := question.Points
		if points == 0 {
			points = 1
		}
		qr := model.QuestionResult{QuestionID: question.ID, PointsMax: points}
		if record, ok := session.answers[question.ID]; ok {
			qr.Skipped = record.skipped
			if record.optionID != nil && *record.optionID == question.CorrectOptionID {
				qr.Correct = true
				qr.PointsAwarded = points
			}
		} else {
			qr.Skipped = true
		}
		result.MaxScore += qr.PointsMax
		result.Score += qr.PointsAwarded
		result.QuestionResults = append(result.QuestionResults, qr)
	}

	if result.MaxScore > 0 {
		result.Percentage = float64(result.Score) / float64(result.MaxScore) * 100
	}
	result.Passed = result.Reason == model.ReasonCompleted && result.Percentage >= quiz.PassingScorePercentage
	return &result, nil
}

func (s *Store) sessionLocked(attemptID string) (*attemptSession, *Quiz, error) {
	session, ok := s.attempts[attemptID]
	if !ok {
		return nil, nil, errNotFound("attempt")
	}
	quiz, ok := s.quizzes[session.quizID]
	if !ok {
		return nil, nil, errNotFound("quiz")
	}
	return session, quiz, nil
}

// expireOverdueLocked advances past questions whose time ran out without any
// submission, and finalizes attempts that blew the quiz-wide budget.
func (s *Store) expireOverdueLocked(session *attemptSession, quiz *Quiz) {
	if quiz.TimeLimitMinutes != nil {
		budget := time.Duration(*quiz.TimeLimitMinutes) * time.Minute
		if s.now().Sub(session.startedAt) >= budget {
			session.complete(model.ReasonTimeExpired)
			return
		}
	}

	for session.questionIndex < len(quiz.Questions) {
		question := quiz.Questions[session.questionIndex]
		overdue := time.Duration(question.TimeLimitSeconds)*time.Second + 5*time.Second
		if s.now().Sub(session.questionStartedAt) < overdue {
			return
		}
		// Grace period passed with no submission at all: record a skip.
		session.answers[question.ID] = answerRecord{skipped: true, autoSubmitted: true}
		session.questionIndex++
		session.questionStartedAt = s.now()
	}
	session.complete(model.ReasonCompleted)
}

func (s *Store) attemptCountLocked(quizID string) int {
	count := 0
	for _, session := range s.attempts {
		if session.quizID == quizID {
			count++
		}
	}
	return count
}
