package stepseq

import (
	"errors"
	"log/slog"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Notifier receives user-facing status from the engine.
type Notifier interface {
	Notify(message string)
	Loading(active bool, label string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) Notify(message string) { n.logger().Info(message) }

func (n LogNotifier) Loading(active bool, label string) {
	if active {
		n.logger().Info(label, "loading", true)
	}
}

// KindInvalidInput tags rejected edits.
const KindInvalidInput ftag.Kind = "invalid-input"

var (
	ErrNotReady = errors.New("engine not initialised")
	ErrClosed   = errors.New("engine closed")

	errBand = errors.New("band out of range")
)

func invalid(err error, msg string) error {
	return fault.Wrap(err, ftag.With(KindInvalidInput), fmsg.With(msg))
}

// Issue returns the user-facing message carried by err, or its text.
func Issue(err error) string {
	if err == nil {
		return ""
	}
	if msg := fmsg.GetIssue(err); msg != "" {
		return msg
	}
	return err.Error()
}

func (e *Engine) report(err error) {
	e.logger.Warn("operation failed", "kind", string(ftag.Get(err)), "err", err)
	e.notifier.Notify(Issue(err))
}
