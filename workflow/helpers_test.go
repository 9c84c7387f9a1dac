package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/internal/command"
	"github.com/usherflow/usher/internal/workflowstate"
)

var testTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// evaluate runs one tick of f over events.
func evaluate(t *testing.T, f *Fragment, input any, events ...*history.Event) (*Context, []command.Command) {
	t.Helper()

	batch := command.NewBatch()
	ctx := NewContext(workflowstate.Fold(events, 0), batch, nil, "", input, nil)
	require.NoError(t, Execute(f, ctx))

	return ctx, batch.Commands()
}

// sim records the commands of every tick as history. Activities complete with the result of
// activity, timers fire right away unless holdTimers is set.
type sim struct {
	seq    int64
	events []*history.Event

	activity     func(id string, input any) (any, error)
	holdActivity bool
	holdTimers   bool

	held []heldActivity
}

type heldActivity struct {
	seq int64
	cmd *command.ScheduleActivityCommand
}

func (s *sim) append(eventType history.EventType, attributes any, opts ...history.HistoryEventOption) int64 {
	s.seq++
	opts = append(opts, history.SequenceID(s.seq))
	s.events = append(s.events, history.NewHistoryEvent(testTime, eventType, attributes, opts...))

	return s.seq
}

func (s *sim) tick(t *testing.T, f *Fragment, input any) (*Context, []command.Command) {
	t.Helper()

	ctx, commands := evaluate(t, f, input, s.events...)

	for _, c := range commands {
		switch c := c.(type) {
		case *command.ScheduleActivityCommand:
			seq := s.append(history.EventType_ActivityScheduled, &history.ActivityScheduledAttributes{
				ActivityID: c.ActivityID,
				Name:       c.Name,
				Input:      c.Input,
			})

			if s.holdActivity {
				s.held = append(s.held, heldActivity{seq, c})
				continue
			}

			s.complete(t, seq, c)

		case *command.StartTimerCommand:
			seq := s.append(history.EventType_TimerStarted, &history.TimerStartedAttributes{TimerID: c.TimerID, Delay: c.Delay})
			if !s.holdTimers {
				s.append(history.EventType_TimerFired, &history.TimerFiredAttributes{TimerID: c.TimerID}, history.ScheduleEventID(seq))
			}

		case *command.RecordMarkerCommand:
			s.append(history.EventType_MarkerRecorded, &history.MarkerRecordedAttributes{Name: c.Name, Details: c.Details})
		}
	}

	return ctx, commands
}

// release completes all held activities.
func (s *sim) release(t *testing.T) {
	held := s.held
	s.held = nil

	for _, h := range held {
		s.complete(t, h.seq, h.cmd)
	}
}

func (s *sim) complete(t *testing.T, seq int64, c *command.ScheduleActivityCommand) {
	var input any
	require.NoError(t, json.Unmarshal(c.Input, &input))

	var result any = c.ActivityID
	var err error
	if s.activity != nil {
		result, err = s.activity(c.ActivityID, input)
	}

	if err != nil {
		s.append(history.EventType_ActivityFailed, &history.ActivityFailedAttributes{Reason: err.Error()}, history.ScheduleEventID(seq))
		return
	}

	p, merr := json.Marshal(result)
	require.NoError(t, merr)

	s.append(history.EventType_ActivityCompleted, &history.ActivityCompletedAttributes{Result: payload.Payload(p)}, history.ScheduleEventID(seq))
}

func scheduledActivities(commands []command.Command) []string {
	ids := make([]string, 0)
	for _, c := range commands {
		if sa, ok := c.(*command.ScheduleActivityCommand); ok {
			ids = append(ids, sa.ActivityID)
		}
	}

	return ids
}

func markers(commands []command.Command) []*command.RecordMarkerCommand {
	m := make([]*command.RecordMarkerCommand, 0)
	for _, c := range commands {
		if rm, ok := c.(*command.RecordMarkerCommand); ok {
			m = append(m, rm)
		}
	}

	return m
}

func timers(commands []command.Command) []string {
	ids := make([]string, 0)
	for _, c := range commands {
		if st, ok := c.(*command.StartTimerCommand); ok {
			ids = append(ids, st.TimerID)
		}
	}

	return ids
}
