package dto

import "time"

type OptionDTO struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
}

type QuestionDTO struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	ImageURL         *string     `json:"image_url,omitempty"`
	CodeSnippet      *string     `json:"code_snippet,omitempty"`
	Points           int         `json:"points"`
	TimeLimitSeconds int         `json:"time_limit_seconds"`
	Options          []OptionDTO `json:"options"`
}

type QuizDetailResponse struct {
	ID                     string  `json:"id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	TimeLimitMinutes       *int    `json:"time_limit_minutes,omitempty"`
	PassingScorePercentage float64 `json:"passing_score_percentage"`
	MaxAttempts            int     `json:"max_attempts"`
	RequiresRegistration   bool    `json:"requires_registration"`
	TotalQuestions         int     `json:"total_questions"`
	IsRegistered           bool    `json:"is_registered"`
	AttemptsUsed           int     `json:"attempts_used"`
}

type StartAttemptResponse struct {
	AttemptID      string    `json:"attempt_id"`
	StartedAt      time.Time `json:"started_at"`
	TotalQuestions int       `json:"total_questions"`
}

type CurrentQuestionResponse struct {
	Completed        bool         `json:"completed"`
	QuestionNumber   int          `json:"question_number,omitempty"`
	RemainingSeconds int          `json:"remaining_seconds,omitempty"`
	Question         *QuestionDTO `json:"question,omitempty"`
}

type SubmitAnswerResponse struct {
	Recorded              bool `json:"recorded"`
	Completed             bool `json:"completed"`
	CurrentQuestionNumber int  `json:"current_question_number"`
}

type QuestionResultDTO struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	Skipped       bool   `json:"skipped"`
	PointsAwarded int    `json:"points_awarded"`
	PointsMax     int    `json:"points_max"`
}

type ResultResponse struct {
	AttemptID       string              `json:"attempt_id"`
	QuizTitle       string              `json:"quiz_title"`
	Score           int                 `json:"score"`
	MaxScore        int                 `json:"max_score"`
	Percentage      float64             `json:"percentage"`
	Passed          bool                `json:"passed"`
	Reason          string              `json:"reason"`
	QuestionResults []QuestionResultDTO `json:"question_results,omitempty"`
}

// ErrorResponse carries a machine-readable code so clients can branch on the
// error kind instead of sniffing message text.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes shared between client and backend.
const (
	CodeAnswerAlreadySubmitted = "answer_already_submitted"
	CodeSessionExpired         = "session_expired"
	CodeCSRFMismatch           = "csrf_mismatch"
	CodeNotFound               = "not_found"
	CodeRegistrationRequired   = "registration_required"
	CodeAttemptLimitReached    = "attempt_limit_reached"
	CodeAttemptFinalized       = "attempt_finalized"
)
