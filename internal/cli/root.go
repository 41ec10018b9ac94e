package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var baseURL string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envBase := os.Getenv("API_BASE_URL")

	cmd := &cobra.Command{
		Use:   "quiztaker",
		Short: "Timed, proctored quiz taking against an LMS backend",
	}

	cmd.PersistentFlags().StringVar(&baseURL, "base-url", envBase, "LMS API base URL (overrides config)")
	cmd.AddCommand(NewTakeCmd())
	cmd.AddCommand(NewPracticeCmd())
	return cmd
}
