package perf

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
)

// Kind distinguishes marks from measures
type Kind string

const (
	KindMark    Kind = "mark"
	KindMeasure Kind = "measure"
	KindAny     Kind = ""
)

const defaultCapacity = 1000

// ErrMarkNotFound is returned when a measure references an unknown mark
var ErrMarkNotFound = errors.New("mark not found")

// Entry is one performance entry
type Entry struct {
	Name      string        `json:"name"`
	Kind      Kind          `json:"entryType"`
	StartTime time.Duration `json:"startTime"`
	Duration  time.Duration `json:"duration"`
}

// Stat summarizes all measures sharing a name
type Stat struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
}

// Options configures a Recorder
type Options struct {
	Clock    clockwork.Clock
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	Capacity int
}

// Recorder stores marks and measures
type Recorder struct {
	clock    clockwork.Clock
	origin   time.Time
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	capacity int

	mu      sync.Mutex
	entries []Entry
	marks   map[string]time.Duration
}

// New creates a recorder whose origin is the current clock time
func New(opts Options) *Recorder {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	return &Recorder{
		clock:    opts.Clock,
		origin:   opts.Clock.Now(),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		capacity: opts.Capacity,
		marks:    make(map[string]time.Duration),
	}
}

// Mark records a named timestamp
func (r *Recorder) Mark(name string) Entry {
	e := Entry{Name: name, Kind: KindMark, StartTime: r.clock.Since(r.origin)}

	r.mu.Lock()
	r.marks[name] = e.StartTime
	r.append(e)
	r.mu.Unlock()

	return e
}

// Measure records the span between the latest marks named start and end
func (r *Recorder) Measure(name, start, end string) (Entry, error) {
	r.mu.Lock()
	from, ok := r.marks[start]
	if !ok {
		r.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %s", ErrMarkNotFound, start)
	}
	to, ok := r.marks[end]
	if !ok {
		r.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %s", ErrMarkNotFound, end)
	}
	e := Entry{Name: name, Kind: KindMeasure, StartTime: from, Duration: to - from}
	r.append(e)
	r.mu.Unlock()

	r.metrics.ObserveMeasure(name, e.Duration)
	return e, nil
}

// Span marks "<name>:start" now and returns a func that marks "<name>:end"
// and records the "<name>" measure. Intended for defer.
func (r *Recorder) Span(name string) func() {
	r.Mark(name + ":start")
	return func() {
		r.Mark(name + ":end")
		if _, err := r.Measure(name, name+":start", name+":end"); err != nil {
			r.logger.Debug("measure failed", zap.String("name", name), zap.Error(err))
		}
	}
}

// Entries returns entries of the given kind whose name starts with prefix,
// in recording order. KindAny matches both kinds.
func (r *Recorder) Entries(kind Kind, prefix string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if kind != KindAny && e.Kind != kind {
			continue
		}
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear drops all entries and marks
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.marks = make(map[string]time.Duration)
	r.mu.Unlock()
}

// Summary computes per-name statistics over the recorded measures
func (r *Recorder) Summary() []Stat {
	byName := make(map[string][]float64)
	for _, e := range r.Entries(KindMeasure, "") {
		byName[e.Name] = append(byName[e.Name], float64(e.Duration)/float64(time.Millisecond))
	}

	stats := make([]Stat, 0, len(byName))
	for name, xs := range byName {
		sort.Float64s(xs)
		s := Stat{
			Name:  name,
			Count: len(xs),
			Mean:  stat.Mean(xs, nil),
			P95:   stat.Quantile(0.95, stat.Empirical, xs, nil),
			Max:   xs[len(xs)-1],
		}
		if len(xs) > 1 {
			s.StdDev = stat.StdDev(xs, nil)
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// append must be called with mu held
func (r *Recorder) append(e Entry) {
	if len(r.entries) >= r.capacity {
		r.entries = append(r.entries[:0], r.entries[1:]...)
	}
	r.entries = append(r.entries, e)
}
