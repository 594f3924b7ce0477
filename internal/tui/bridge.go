package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cbegin/stepseq-go/internal/transport"
)

type frameMsg transport.Frame

type toastMsg string

type loadingMsg struct {
	active bool
	label  string
}

// Bridge forwards engine callbacks into a running program. It is created
// before the engine so it can be passed as its notifier and redraw hook;
// messages sent before Attach are dropped.
type Bridge struct {
	program atomic.Pointer[tea.Program]
	once    sync.Once
	queue   chan tea.Msg
}

func NewBridge() *Bridge { return &Bridge{queue: make(chan tea.Msg, 64)} }

// Attach starts forwarding to p. Notifications keep their order.
func (b *Bridge) Attach(p *tea.Program) {
	b.program.Store(p)
	b.once.Do(func() {
		go func() {
			for msg := range b.queue {
				if p := b.program.Load(); p != nil {
					p.Send(msg)
				}
			}
		}()
	})
}

// Redraw runs on the transport's draw goroutine.
func (b *Bridge) Redraw(f transport.Frame) {
	if p := b.program.Load(); p != nil {
		p.Send(frameMsg(f))
	}
}

// Notify may be called from inside Update, so it never blocks. A full
// queue drops the message.
func (b *Bridge) Notify(message string) { b.enqueue(toastMsg(message)) }

func (b *Bridge) Loading(active bool, label string) {
	b.enqueue(loadingMsg{active: active, label: label})
}

func (b *Bridge) enqueue(msg tea.Msg) {
	if b.program.Load() == nil {
		return
	}
	select {
	case b.queue <- msg:
	default:
	}
}
