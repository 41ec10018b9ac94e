package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quizforge/quiztaker/internal/model"
	"github.com/quizforge/quiztaker/internal/service"
)

// SignalSource maps process signals to focus-loss violations: SIGTSTP means
// the quiz was pushed to the background, SIGHUP means the terminal went away.
// The terminal equivalent of a browser tab-hide or window-blur.
type SignalSource struct {
	signals []os.Signal
}

func NewSignalSource() *SignalSource {
	return &SignalSource{signals: []os.Signal{syscall.SIGTSTP, syscall.SIGHUP}}
}

func (s *SignalSource) Watch(ctx context.Context, out chan<- service.ViolationEvent) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.signals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			event := service.ViolationEvent{
				Kind:   model.EventTabSwitch,
				Reason: "quiz window lost focus (" + sig.String() + ")",
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
