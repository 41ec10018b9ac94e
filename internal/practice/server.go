package practice

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/dto"
	"github.com/quizforge/quiztaker/internal/model"
	"github.com/rs/zerolog/log"
)

// Server exposes the quiz-taking wire contract over an in-memory store. It is
// the backend the practice command and the integration tests run against.
type Server struct {
	store      *Store
	csrfCookie string
	csrfHeader string
}

func NewServer(store *Store, cfg *config.Config) *Server {
	return &Server{
		store:      store,
		csrfCookie: cfg.Client.CSRFCookieName,
		csrfHeader: cfg.Client.CSRFHeaderName,
	}
}

func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Debug().
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Msg("practice_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	return r
}

// RegisterRoutes wires the contract under /api/v1. Reads hand out the CSRF
// cookie; writes require it echoed back in the header.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(s.issueCSRFCookie)

	api.GET("/quizzes/:quiz_id", s.getQuiz)
	api.GET("/attempts/:attempt_id/current-question", s.currentQuestion)
	api.GET("/attempts/:attempt_id/results", s.results)

	mutating := api.Group("")
	mutating.Use(s.requireCSRF)
	mutating.POST("/quizzes/:quiz_id/register", s.register)
	mutating.POST("/quizzes/:quiz_id/attempts", s.startAttempt)
	mutating.POST("/attempts/:attempt_id/answers", s.submitAnswer)
	mutating.POST("/attempts/:attempt_id/events", s.reportEvent)
}

func (s *Server) issueCSRFCookie(ctx *gin.Context) {
	if _, err := ctx.Cookie(s.csrfCookie); err != nil {
		ctx.SetCookie(s.csrfCookie, uuid.NewString(), 3600, "/", "", false, false)
	}
	ctx.Next()
}

func (s *Server) requireCSRF(ctx *gin.Context) {
	cookie, err := ctx.Cookie(s.csrfCookie)
	if err != nil || cookie == "" || ctx.GetHeader(s.csrfHeader) != cookie {
		ctx.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
			Code:    dto.CodeCSRFMismatch,
			Message: "missing or mismatched CSRF token",
		})
		return
	}
	ctx.Next()
}

func (s *Server) getQuiz(ctx *gin.Context) {
	details, err := s.store.QuizDetails(ctx.Param("quiz_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	var resp dto.QuizDetailResponse
	if err := copier.Copy(&resp, &details.Quiz); err != nil {
		respondError(ctx, err)
		return
	}
	resp.IsRegistered = details.IsRegistered
	resp.AttemptsUsed = details.AttemptsUsed
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) register(ctx *gin.Context) {
	if err := s.store.Register(ctx.Param("quiz_id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) startAttempt(ctx *gin.Context) {
	attempt, err := s.store.StartAttempt(ctx.Param("quiz_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.StartAttemptResponse{
		AttemptID:      attempt.ID,
		StartedAt:      attempt.StartedAt,
		TotalQuestions: attempt.TotalQuestions,
	})
}

func (s *Server) currentQuestion(ctx *gin.Context) {
	current, err := s.store.CurrentQuestion(ctx.Param("attempt_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := dto.CurrentQuestionResponse{
		Completed:        current.Completed,
		QuestionNumber:   current.QuestionNumber,
		RemainingSeconds: current.RemainingSeconds,
	}
	if current.Question != nil {
		var q dto.QuestionDTO
		if err := copier.Copy(&q, current.Question); err != nil {
			respondError(ctx, err)
			return
		}
		resp.Question = &q
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) submitAnswer(ctx *gin.Context) {
	var req dto.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}

	outcome, err := s.store.SubmitAnswer(ctx.Param("attempt_id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.SubmitAnswerResponse{
		Recorded:              true,
		Completed:             outcome.Completed,
		CurrentQuestionNumber: outcome.CurrentQuestionNumber,
	})
}

func (s *Server) reportEvent(ctx *gin.Context) {
	var req dto.ProctorEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}

	event := model.ProctorEvent{
		Kind:       model.EventKind(req.Kind),
		Reason:     req.Reason,
		OccurredAt: req.OccurredAt,
	}
	if err := s.store.RecordEvent(ctx.Param("attempt_id"), event); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusAccepted)
}

func (s *Server) results(ctx *gin.Context) {
	result, err := s.store.Results(ctx.Param("attempt_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	var resp dto.ResultResponse
	if err := copier.Copy(&resp, result); err != nil {
		respondError(ctx, err)
		return
	}
	resp.Reason = string(result.Reason)
	ctx.JSON(http.StatusOK, resp)
}

func respondError(ctx *gin.Context, err error) {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		ctx.JSON(storeErr.Status, dto.ErrorResponse{Code: storeErr.Code, Message: storeErr.Message})
		return
	}
	log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Practice handler error")
	ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Code: "internal_error", Message: err.Error()})
}
