package metrics

import (
	"maps"
	"sync"
	"time"

	m "github.com/usherflow/usher/backend/metrics"
)

// Recorder keeps reported values in memory. It is used by the tester and in tests asserting
// reported metrics.
type Recorder struct {
	mu   *sync.Mutex
	tags m.Tags

	counters map[string]int64
	gauges   map[string]int64
	timings  map[string][]time.Duration
}

var _ m.Client = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		mu:       &sync.Mutex{},
		counters: map[string]int64{},
		gauges:   map[string]int64{},
		timings:  map[string][]time.Duration{},
	}
}

func (r *Recorder) Counter(name string, tags m.Tags, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name] += value
}

func (r *Recorder) Distribution(name string, tags m.Tags, value float64) {
	r.Timing(name, tags, time.Duration(value)*time.Millisecond)
}

func (r *Recorder) Gauge(name string, tags m.Tags, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges[name] = value
}

func (r *Recorder) Timing(name string, tags m.Tags, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.timings[name] = append(r.timings[name], duration)
}

// WithTags returns a recorder sharing the recorded values.
func (r *Recorder) WithTags(tags m.Tags) m.Client {
	merged := maps.Clone(r.tags)
	if merged == nil {
		merged = m.Tags{}
	}
	maps.Copy(merged, tags)

	c := *r
	c.tags = merged
	return &c
}

func (r *Recorder) CounterValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[name]
}

func (r *Recorder) GaugeValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.gauges[name]
}

func (r *Recorder) TimingCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.timings[name])
}
