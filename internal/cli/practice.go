package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/api"
	"github.com/quizforge/quiztaker/internal/practice"
	"github.com/quizforge/quiztaker/internal/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// NewPracticeCmd builds the command that boots the embedded in-memory backend
// and takes a seeded quiz against it. With --serve it only hosts the backend.
func NewPracticeCmd() *cobra.Command {
	var serveOnly bool

	cmd := &cobra.Command{
		Use:   "practice [quiz-id]",
		Short: "Take a seeded quiz against the embedded practice backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg.Client.BaseURL = "http://localhost:" + cfg.Practice.Port

			quizID := "go-basics"
			if len(args) == 1 {
				quizID = args[0]
			}

			app := fx.New(
				fx.NopLogger,
				fx.Supply(cfg),
				fx.Provide(
					newSeededStore,
					practice.NewEngine,
					practice.NewServer,
				),
				fx.Invoke(registerRoutesAndStartServer),
			)

			startCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return fmt.Errorf("starting practice backend: %w", err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := app.Stop(stopCtx); err != nil {
					log.Warn().Err(err).Msg("Practice backend shutdown failed")
				}
			}()

			if serveOnly {
				log.Info().Str("port", cfg.Practice.Port).Msg("Practice backend serving; Ctrl-C to stop")
				<-cmd.Context().Done()
				return nil
			}

			client, err := api.NewClient(cfg)
			if err != nil {
				return err
			}
			session := runner.New(client, quizID, cfg, os.Stdin, os.Stdout)
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&serveOnly, "serve", false, "only host the practice backend, do not start a session")
	return cmd
}

func newSeededStore() *practice.Store {
	return practice.NewStore(practice.SeedQuizzes()...)
}

func registerRoutesAndStartServer(lc fx.Lifecycle, engine *gin.Engine, server *practice.Server, cfg *config.Config) {
	server.RegisterRoutes(engine)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Practice.Port,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Str("port", cfg.Practice.Port).Msg("Practice backend starting")
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("Practice backend ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Practice backend shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})
}
