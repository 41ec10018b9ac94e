package model

// Quiz is the immutable-for-the-session descriptor loaded once per run.
type Quiz struct {
	ID                     string  `json:"id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	TimeLimitMinutes       *int    `json:"time_limit_minutes,omitempty"` // nil means unlimited
	PassingScorePercentage float64 `json:"passing_score_percentage"`
	MaxAttempts            int     `json:"max_attempts"` // 0 means unlimited
	RequiresRegistration   bool    `json:"requires_registration"`
	TotalQuestions         int     `json:"total_questions"`
}

// QuizDetails pairs the quiz descriptor with the caller's registration status.
type QuizDetails struct {
	Quiz         Quiz `json:"quiz"`
	IsRegistered bool `json:"is_registered"`
	AttemptsUsed int  `json:"attempts_used"`
}

type Option struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Question is the single in-flight question. It is replaced wholesale on every
// load; it is never partially updated.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	ImageURL         *string  `json:"image_url,omitempty"`
	CodeSnippet      *string  `json:"code_snippet,omitempty"`
	Points           int      `json:"points"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
	Options          []Option `json:"options"`
}

// CurrentQuestion is the server's answer to "what should the user see now":
// either the next question with its authoritative remaining time, or a
// completed signal.
type CurrentQuestion struct {
	Completed        bool      `json:"completed"`
	QuestionNumber   int       `json:"question_number,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds,omitempty"`
	Question         *Question `json:"question,omitempty"`
}
