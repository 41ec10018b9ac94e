package cli

import (
	"fmt"
	"os"

	"github.com/quizforge/quiztaker/config"
	"github.com/quizforge/quiztaker/internal/api"
	"github.com/quizforge/quiztaker/internal/runner"
	"github.com/spf13/cobra"
)

// NewTakeCmd builds the command that takes a quiz against the configured
// backend.
func NewTakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take <quiz-id>",
		Short: "Take a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if baseURL != "" {
				cfg.Client.BaseURL = baseURL
			}

			client, err := api.NewClient(cfg)
			if err != nil {
				return err
			}

			session := runner.New(client, args[0], cfg, os.Stdin, os.Stdout)
			return session.Run(cmd.Context())
		},
	}
}
