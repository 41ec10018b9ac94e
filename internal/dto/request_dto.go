package dto

import "time"

type SubmitAnswerRequest struct {
	QuestionID       string  `json:"question_id" binding:"required"`
	SelectedOptionID *string `json:"selected_option_id"` // null when the question was skipped
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	AutoSubmitted    bool    `json:"auto_submitted"`
	Skipped          bool    `json:"skipped"`
}

type ProctorEventRequest struct {
	Kind       string    `json:"kind" binding:"required,oneof=tab_switch blocked_key context_menu time_expired"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
