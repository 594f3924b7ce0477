package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cbegin/stepseq-go/internal/track"
)

// Pattern supplies the hits for a step.
type Pattern interface {
	Hits(step int) []track.Hit
}

// Trigger plays one hit. It runs on the scheduler goroutine.
type Trigger func(track.Hit)

// Frame is posted after every tick and on stop for the UI to redraw.
type Frame struct {
	Step    int
	At      time.Time
	Active  []string // ids of tracks that fired
	Playing bool
}

// Event carries transport state changes from Watch().
type Event struct {
	Kind int // EventStarted, EventStopped, EventWrapped or EventPatternEnded
	Step int
}

const (
	EventStarted int = iota
	EventStopped
	EventWrapped
	EventPatternEnded
)

const drawBuffer = 4

type Options struct {
	Grid    int
	BPM     int
	Looping bool
	Clock   Clock
	OnDraw  func(Frame)
	Logger  *slog.Logger
}

// Transport drives a pattern at a fixed step rate. It is safe for
// concurrent use.
type Transport struct {
	mu      sync.Mutex
	pattern Pattern
	trigger Trigger
	clock   Clock
	logger  *slog.Logger

	grid    int
	bpm     int
	step    int
	playing bool
	looping bool
	gen     uint64
	timer   Timer
	next    time.Time

	draw      chan Frame
	onDraw    func(Frame)
	quit      chan struct{}
	closeOnce sync.Once

	eventCh   chan Event
	eventChMu sync.Mutex
}

func New(p Pattern, trig Trigger, opts Options) *Transport {
	if opts.Grid <= 0 {
		opts.Grid = track.GridLength(track.DefaultBars, track.DefaultBeatsPerBar)
	}
	if opts.BPM == 0 {
		opts.BPM = DefaultBPM
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	t := &Transport{
		pattern: p,
		trigger: trig,
		clock:   opts.Clock,
		logger:  opts.Logger,
		grid:    opts.Grid,
		bpm:     ClampBPM(opts.BPM),
		looping: opts.Looping,
		quit:    make(chan struct{}),
	}
	if opts.OnDraw != nil {
		t.onDraw = opts.OnDraw
		t.draw = make(chan Frame, drawBuffer)
		go t.drawLoop()
	}
	return t
}

func (t *Transport) drawLoop() {
	for {
		select {
		case f := <-t.draw:
			t.onDraw(f)
		case <-t.quit:
			return
		}
	}
}

// Play toggles between playing and stopped and returns the new state.
func (t *Transport) Play() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.stopLocked()
	} else {
		t.startLocked()
	}
	return t.playing
}

func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		t.startLocked()
	}
}

// Stop halts playback. No tick fires after Stop returns. The current step
// is kept.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.stopLocked()
	}
}

func (t *Transport) startLocked() {
	t.playing = true
	t.gen++
	gen := t.gen
	t.next = t.clock.Now()
	t.timer = t.clock.AfterFunc(0, func() { t.fire(gen) })
	t.sendEvent(Event{Kind: EventStarted, Step: t.step})
}

func (t *Transport) stopLocked() {
	t.playing = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.postDraw(Frame{Step: t.step, At: t.clock.Now()})
	t.sendEvent(Event{Kind: EventStopped, Step: t.step})
}

func (t *Transport) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing || gen != t.gen {
		return
	}
	at := t.next
	t.tickLocked(at)
	if !t.playing || gen != t.gen {
		return
	}
	t.next = at.Add(Interval(t.bpm))
	delay := t.next.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t.timer = t.clock.AfterFunc(delay, func() { t.fire(gen) })
}

// Tick runs a single step immediately: trigger every hit at the current
// step, post a redraw frame and advance.
func (t *Transport) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tickLocked(t.clock.Now())
}

func (t *Transport) tickLocked(at time.Time) {
	step := t.step
	hits := t.pattern.Hits(step)
	var active []string
	for _, h := range hits {
		t.fireHit(h)
		if n := len(active); n == 0 || active[n-1] != h.TrackID {
			active = append(active, h.TrackID)
		}
	}
	t.postDraw(Frame{Step: step, At: at, Active: active, Playing: t.playing})
	t.step = (step + 1) % t.grid
	if t.step != 0 {
		return
	}
	t.sendEvent(Event{Kind: EventWrapped, Step: step})
	if t.playing && !t.looping {
		t.stopLocked()
		t.sendEvent(Event{Kind: EventPatternEnded, Step: step})
	}
}

func (t *Transport) fireHit(h track.Hit) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("trigger failed", "track", h.TrackID, "pitch", h.Pitch, "panic", r)
		}
	}()
	t.trigger(h)
}

func (t *Transport) postDraw(f Frame) {
	if t.draw == nil {
		return
	}
	select {
	case t.draw <- f:
	default:
		t.logger.Debug("dropped redraw frame", "step", f.Step)
	}
}

func (t *Transport) sendEvent(ev Event) {
	t.eventChMu.Lock()
	ch := t.eventCh
	t.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watch returns a channel that receives transport events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch() channel receives events.
func (t *Transport) Watch() <-chan Event {
	ch := make(chan Event, 8)
	t.eventChMu.Lock()
	t.eventCh = ch
	t.eventChMu.Unlock()
	return ch
}

// Rewind moves back to step 0 without changing the play state.
func (t *Transport) Rewind() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step = 0
	if !t.playing {
		t.postDraw(Frame{Step: 0, At: t.clock.Now()})
	}
}

// SetBPM clamps bpm and returns the stored value. A running transport
// picks it up at the next scheduled tick.
func (t *Transport) SetBPM(bpm int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bpm = ClampBPM(bpm)
	return t.bpm
}

func (t *Transport) BPM() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

func (t *Transport) ToggleLoop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.looping = !t.looping
	return t.looping
}

func (t *Transport) SetLooping(on bool) {
	t.mu.Lock()
	t.looping = on
	t.mu.Unlock()
}

func (t *Transport) Looping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.looping
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Transport) Step() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step
}

func (t *Transport) Grid() int { return t.grid }

// Close stops playback and the draw goroutine.
func (t *Transport) Close() {
	t.Stop()
	t.closeOnce.Do(func() { close(t.quit) })
}
