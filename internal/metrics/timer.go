package metrics

import (
	"time"

	"github.com/usherflow/usher/backend/metrics"
)

type Timer struct {
	client metrics.Client
	start  time.Time
	name   string
	tags   metrics.Tags
}

func NewTimer(client metrics.Client, name string, tags metrics.Tags) *Timer {
	return &Timer{
		client: client,
		start:  time.Now(),
		name:   name,
		tags:   tags,
	}
}

// Stop the timer and report the elapsed time
func (t *Timer) Stop() {
	t.client.Timing(t.name, t.tags, time.Since(t.start))
}
