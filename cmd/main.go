package main

import (
	"os"

	"github.com/quizforge/quiztaker/internal/cli"
	"github.com/quizforge/quiztaker/internal/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("quiztaker exited with error")
		os.Exit(1)
	}
}
