package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Countdown is a cancellable 1-second countdown task. It decrements while
// running and not suspended, fires each configured threshold at most once
// (latched by a fired flag, not value equality, so a missed tick never skips
// or double-fires a warning), and fires the at-zero callback exactly once.
//
// Used twice per attempt: a question timer reset from the server-reported
// remaining time on every question load, and a quiz-wide timer anchored to
// the attempt's start timestamp.
type Countdown struct {
	name     string
	interval time.Duration

	// suspended holds ticks while a submission is in flight or after finalize.
	suspended   func() bool
	onThreshold func(mark int)
	onZero      func()

	mu         sync.Mutex
	limit      int
	remaining  int
	thresholds map[int]bool // mark -> fired
	zeroFired  bool
	stopped    bool
	stopCh     chan struct{}
	running    bool
}

// NewCountdown builds a countdown named for logging. thresholds lists the
// remaining-seconds marks at which onThreshold fires once each.
func NewCountdown(name string, thresholds []int, suspended func() bool, onThreshold func(mark int), onZero func()) *Countdown {
	marks := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		marks[t] = false
	}
	return &Countdown{
		name:        name,
		interval:    time.Second,
		suspended:   suspended,
		onThreshold: onThreshold,
		onZero:      onZero,
		thresholds:  marks,
		stopCh:      make(chan struct{}),
	}
}

// Reset arms the countdown with a fresh budget. Threshold latches are not
// cleared: warnings fire at most once per attempt, not once per question.
func (c *Countdown) Reset(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = seconds
	c.remaining = seconds
	c.zeroFired = false
	c.stopped = seconds <= 0
}

// Start begins ticking on a background goroutine. Idempotent. Each Start gets
// a fresh stop channel so a Stop/Start/Stop sequence cannot double-close.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Tick advances the countdown by one second. Exposed so tests can drive time
// deterministically.
func (c *Countdown) Tick() {
	if c.suspended != nil && c.suspended() {
		return
	}

	c.mu.Lock()
	if c.stopped || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}

	var fireMarks []int
	for mark, fired := range c.thresholds {
		if !fired && c.remaining <= mark && c.remaining > 0 {
			c.thresholds[mark] = true
			fireMarks = append(fireMarks, mark)
		}
	}

	fireZero := false
	if c.remaining == 0 && !c.zeroFired {
		c.zeroFired = true
		c.stopped = true
		fireZero = true
	}
	c.mu.Unlock()

	for _, mark := range fireMarks {
		log.Debug().Str("timer", c.name).Int("mark", mark).Msg("Countdown threshold reached")
		if c.onThreshold != nil {
			c.onThreshold(mark)
		}
	}
	if fireZero {
		log.Debug().Str("timer", c.name).Msg("Countdown reached zero")
		if c.onZero != nil {
			c.onZero()
		}
	}
}

// Sync overwrites the remaining time with an authoritative external figure
// (server-computed remaining seconds), clamped to the configured budget.
// Syncing an armed countdown to zero fires the at-zero callback: the deadline
// can pass while ticks are held on an in-flight submission, and the timeout
// path must still run.
func (c *Countdown) Sync(seconds int) {
	c.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	if c.limit > 0 && seconds > c.limit {
		seconds = c.limit
	}
	c.remaining = seconds

	fireZero := seconds == 0 && c.limit > 0 && !c.stopped && !c.zeroFired
	if fireZero {
		c.zeroFired = true
		c.stopped = true
	}
	c.mu.Unlock()

	if fireZero {
		log.Debug().Str("timer", c.name).Msg("Countdown synced past its deadline")
		if c.onZero != nil {
			c.onZero()
		}
	}
}

// Remaining returns the seconds left, always within [0, budget].
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop tears the ticking goroutine down and holds further ticks. Idempotent,
// and safe to interleave with Start; a stopped countdown stays silent until
// Reset re-arms it.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.running {
		c.running = false
		close(c.stopCh)
	}
}
