package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/dto"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/rs/zerolog/log"
)

// Client talks JSON over HTTP to the LMS backend. It keeps a cookie jar for
// the session and echoes the CSRF cookie back in a header on every mutating
// request.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	csrfCookie string
	csrfHeader string
}

func NewClient(cfg *config.Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Client.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", cfg.Client.BaseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Jar: jar, Timeout: cfg.Client.Timeout},
		csrfCookie: cfg.Client.CSRFCookieName,
		csrfHeader: cfg.Client.CSRFHeaderName,
	}, nil
}

func (c *Client) GetQuiz(ctx context.Context, quizID string) (*model.QuizDetails, error) {
	var resp dto.QuizDetailResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/quizzes/"+url.PathEscape(quizID), nil, &resp); err != nil {
		return nil, err
	}

	details := model.QuizDetails{
		IsRegistered: resp.IsRegistered,
		AttemptsUsed: resp.AttemptsUsed,
	}
	if err := copier.Copy(&details.Quiz, &resp); err != nil {
		return nil, fmt.Errorf("mapping quiz response: %w", err)
	}
	return &details, nil
}

func (c *Client) Register(ctx context.Context, quizID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/quizzes/"+url.PathEscape(quizID)+"/register", nil, nil)
}

func (c *Client) StartAttempt(ctx context.Context, quizID string) (*model.Attempt, error) {
	var resp dto.StartAttemptResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/quizzes/"+url.PathEscape(quizID)+"/attempts", nil, &resp); err != nil {
		return nil, err
	}
	return &model.Attempt{
		ID:                    resp.AttemptID,
		StartedAt:             resp.StartedAt,
		TotalQuestions:        resp.TotalQuestions,
		CurrentQuestionNumber: 1,
	}, nil
}

func (c *Client) CurrentQuestion(ctx context.Context, attemptID string) (*model.CurrentQuestion, error) {
	var resp dto.CurrentQuestionResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/attempts/"+url.PathEscape(attemptID)+"/current-question", nil, &resp); err != nil {
		return nil, err
	}

	current := model.CurrentQuestion{
		Completed:        resp.Completed,
		QuestionNumber:   resp.QuestionNumber,
		RemainingSeconds: resp.RemainingSeconds,
	}
	if resp.Question != nil {
		var q model.Question
		if err := copier.Copy(&q, resp.Question); err != nil {
			return nil, fmt.Errorf("mapping question response: %w", err)
		}
		current.Question = &q
	}
	return &current, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, attemptID string, sub model.AnswerSubmission) (*model.SubmitOutcome, error) {
	req := dto.SubmitAnswerRequest{
		QuestionID:       sub.QuestionID,
		SelectedOptionID: sub.SelectedOptionID,
		ElapsedSeconds:   sub.ElapsedSeconds,
		AutoSubmitted:    sub.AutoSubmitted,
		Skipped:          sub.Skipped,
	}
	var resp dto.SubmitAnswerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/attempts/"+url.PathEscape(attemptID)+"/answers", req, &resp); err != nil {
		return nil, err
	}
	return &model.SubmitOutcome{
		Completed:             resp.Completed,
		CurrentQuestionNumber: resp.CurrentQuestionNumber,
	}, nil
}

func (c *Client) ReportEvent(ctx context.Context, attemptID string, event model.ProctorEvent) error {
	req := dto.ProctorEventRequest{
		Kind:       string(event.Kind),
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/attempts/"+url.PathEscape(attemptID)+"/events", req, nil)
}

func (c *Client) Results(ctx context.Context, attemptID string) (*model.AttemptResult, error) {
	var resp dto.ResultResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/attempts/"+url.PathEscape(attemptID)+"/results", nil, &resp); err != nil {
		return nil, err
	}
	var result model.AttemptResult
	if err := copier.Copy(&result, &resp); err != nil {
		return nil, fmt.Errorf("mapping result response: %w", err)
	}
	result.Reason = model.FinalizeReason(resp.Reason)
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(c.csrfHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody dto.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr != nil {
			log.Debug().Err(decodeErr).Int("status", resp.StatusCode).Msg("Undecodable error body")
		}
		return classify(resp.StatusCode, errBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error()}
		}
	}
	return nil
}

// csrfToken returns the CSRF cookie the backend set for our base URL, if any.
func (c *Client) csrfToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == c.csrfCookie {
			return cookie.Value
		}
	}
	return ""
}
