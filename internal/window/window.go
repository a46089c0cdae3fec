package window

import (
	"fmt"
	"sync"
)

// Point is one plotted observation: the instrument's own timestamp string
// and the reading taken at it.
type Point struct {
	Timestamp string
	Value     float64
}

// Window is a fixed-capacity ring of Points with strict FIFO eviction.
// It is not safe for concurrent use on its own; the Aggregator guards it.
type Window struct {
	buf   []Point
	start int
	count int
}

func NewWindow(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("window: capacity must be positive, got %d", capacity)
	}
	return &Window{buf: make([]Point, capacity)}, nil
}

func (w *Window) Append(p Point) {
	if w.count < len(w.buf) {
		w.buf[(w.start+w.count)%len(w.buf)] = p
		w.count++
		return
	}
	// full: overwrite the oldest slot and advance
	w.buf[w.start] = p
	w.start = (w.start + 1) % len(w.buf)
}

func (w *Window) Len() int { return w.count }

// Snapshot returns the window contents oldest-first. The returned slice is
// a copy; callers may hold it across further appends.
func (w *Window) Snapshot() []Point {
	out := make([]Point, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Aggregator keeps one Window per plotted channel. Appends come from the
// consumer loop; snapshots are taken by the view layer from whatever
// goroutine it runs on, so access is mutex-guarded.
type Aggregator struct {
	mu       sync.Mutex
	capacity int
	channels map[string]*Window
}

func NewAggregator(capacity int, channels []string) (*Aggregator, error) {
	a := &Aggregator{
		capacity: capacity,
		channels: make(map[string]*Window, len(channels)),
	}
	for _, name := range channels {
		w, err := NewWindow(capacity)
		if err != nil {
			return nil, err
		}
		a.channels[name] = w
	}
	return a, nil
}

func (a *Aggregator) Append(channel, timestamp string, value float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.channels[channel]
	if !ok {
		return fmt.Errorf("window: unknown channel %q", channel)
	}
	w.Append(Point{Timestamp: timestamp, Value: value})
	return nil
}

func (a *Aggregator) Snapshot(channel string) ([]Point, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.channels[channel]
	if !ok {
		return nil, fmt.Errorf("window: unknown channel %q", channel)
	}
	return w.Snapshot(), nil
}
