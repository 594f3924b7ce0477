package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 90
)

// Poller waits for a task to reach a terminal state, checking at a fixed
// interval for a bounded number of attempts.
type Poller struct {
	Client      Client
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
	// OnProgress, when set, is called after each non-terminal check.
	OnProgress func(attempt, limit int, status Status)

	after func(time.Duration) <-chan time.Time
}

func NewPoller(c Client) *Poller {
	return &Poller{Client: c, Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

// Run starts a task and waits for it.
func (p *Poller) Run(ctx context.Context, req Request) (Result, error) {
	id, err := p.Client.Generate(ctx, req)
	if err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}
	return p.Wait(ctx, id)
}

// Wait polls taskID until it completes, fails or runs out of attempts.
// Completed results return a nil error; failed and timed-out results are
// returned together with an error describing them.
func (p *Poller) Wait(ctx context.Context, taskID string) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	after := p.after
	if after == nil {
		after = time.After
	}
	res := Result{TaskID: taskID, Status: StatusPending}
	for attempt := 1; attempt <= limit; attempt++ {
		select {
		case <-ctx.Done():
			return res, fault.Wrap(ctx.Err(), fmsg.With("wait for generation"))
		case <-after(interval):
		}
		st, err := p.Client.Status(ctx, taskID)
		st.Attempts = attempt
		if err != nil {
			logger.Warn("generation status check failed", "task", taskID, "attempt", attempt, "err", err)
			res.Attempts = attempt
			p.progress(attempt, limit, StatusPending)
			continue
		}
		res = st
		switch {
		case st.Status == StatusCompleted && st.AudioURL != "":
			logger.Info("generation completed", "task", taskID, "attempts", attempt)
			return res, nil
		case st.Status == StatusFailed:
			msg := st.Error
			if msg == "" {
				msg = "unknown error"
			}
			return res, fault.New("generation failed: "+msg, ftag.With(KindService),
				fmsg.WithDesc("generation failed", "Music generation failed: "+msg))
		}
		res.Status = StatusPending
		p.progress(attempt, limit, res.Status)
	}
	res.Status = StatusTimedOut
	return res, fault.New("generation timed out", ftag.With(KindService),
		fmsg.WithDesc("timed out", "Generation timed out. Try again later."))
}

func (p *Poller) progress(attempt, limit int, s Status) {
	if p.OnProgress != nil {
		p.OnProgress(attempt, limit, s)
	}
}
