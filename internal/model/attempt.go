package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// FinalizeReason distinguishes how an attempt reached its terminal state.
type FinalizeReason string

const (
	ReasonCompleted       FinalizeReason = "completed"
	ReasonTimeExpired     FinalizeReason = "time_expired"
	ReasonPolicyViolation FinalizeReason = "policy_violation"
)

// EventKind enumerates reportable proctoring events. The first three are
// policy violations and terminate the attempt immediately; time_expired is
// reported when the quiz-wide timer runs out.
type EventKind string

const (
	EventTabSwitch   EventKind = "tab_switch"
	EventBlockedKey  EventKind = "blocked_key"
	EventContextMenu EventKind = "context_menu"
	EventTimeExpired EventKind = "time_expired"
)

// Attempt is the server-issued session object created by start. StartedAt is
// the server timestamp and is authoritative for all elapsed-time math.
type Attempt struct {
	ID                    string    `json:"id"`
	StartedAt             time.Time `json:"started_at"`
	TotalQuestions        int       `json:"total_questions"`
	CurrentQuestionNumber int       `json:"current_question_number"`
}

// AnswerSubmission is one answer (or skip) for the current question.
type AnswerSubmission struct {
	QuestionID       string
	SelectedOptionID *string // nil means skipped
	ElapsedSeconds   int
	AutoSubmitted    bool
	Skipped          bool
}

// SubmitOutcome reports where the attempt stands after an answer was recorded.
type SubmitOutcome struct {
	Completed             bool
	CurrentQuestionNumber int
}

// ProctorEvent is a best-effort report of an integrity violation or expiry.
type ProctorEvent struct {
	Kind       EventKind
	Reason     string
	OccurredAt time.Time
}

type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	Skipped       bool   `json:"skipped"`
	PointsAwarded int    `json:"points_awarded"`
	PointsMax     int    `json:"points_max"`
}

// AttemptResult is what the results view renders after any terminal transition.
type AttemptResult struct {
	AttemptID       string           `json:"attempt_id"`
	QuizTitle       string           `json:"quiz_title"`
	Score           int              `json:"score"`
	MaxScore        int              `json:"max_score"`
	Percentage      float64          `json:"percentage"`
	Passed          bool             `json:"passed"`
	Reason          FinalizeReason   `json:"reason"`
	QuestionResults []QuestionResult `json:"question_results,omitempty"`
}
