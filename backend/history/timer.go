package history

import (
	"time"

	"github.com/usherflow/usher/backend/payload"
)

type TimerStartedAttributes struct {
	TimerID string `json:"timer_id,omitempty"`

	Delay time.Duration `json:"delay,omitempty"`

	At time.Time `json:"at,omitempty"`
}

type TimerFiredAttributes struct {
	TimerID string `json:"timer_id,omitempty"`

	At time.Time `json:"at,omitempty"`
}

type MarkerRecordedAttributes struct {
	Name string `json:"name,omitempty"`

	Details payload.Payload `json:"details,omitempty"`
}
