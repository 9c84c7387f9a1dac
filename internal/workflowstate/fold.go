package workflowstate

import (
	"cmp"
	"slices"

	"github.com/usherflow/usher/backend/converter"
	"github.com/usherflow/usher/backend/history"
	"github.com/usherflow/usher/backend/payload"
	"github.com/usherflow/usher/core"
)

// Fold reconstructs the state of a workflow execution from its history. Events are processed in
// ascending sequence order and only up to horizon; a horizon <= 0 folds the whole history. Events
// that reference an initiating event outside the folded prefix are collected as orphans.
//
// Fold does not modify events and returns the same snapshot for the same input.
func Fold(events []*history.Event, horizon int64) *Snapshot {
	s := newSnapshot(horizon)

	sorted := slices.DeleteFunc(slices.Clone(events), func(e *history.Event) bool {
		return e == nil
	})
	slices.SortStableFunc(sorted, func(a, b *history.Event) int {
		return cmp.Compare(a.SequenceID, b.SequenceID)
	})

	f := &folder{
		s:                 s,
		activityBySeq:     map[int64]string{},
		subWorkflowBySeq:  map[int64]string{},
		timerBySeq:        map[int64]string{},
		attributesDecoder: converter.DefaultConverter,
	}

	for _, e := range sorted {
		if horizon > 0 && e.SequenceID > horizon {
			break
		}

		f.apply(e)
		s.lastSequenceID = e.SequenceID
	}

	return s
}

type folder struct {
	s *Snapshot

	activityBySeq    map[int64]string
	subWorkflowBySeq map[int64]string
	timerBySeq       map[int64]string

	attributesDecoder converter.Converter
}

func (f *folder) apply(e *history.Event) {
	switch e.Type {
	case history.EventType_WorkflowExecutionStarted:
		a, ok := e.Attributes.(*history.ExecutionStartedAttributes)
		if !ok {
			f.orphan(e)
			return
		}

		f.s.started = a
		f.s.input = f.decode(e, a.Input)

	case history.EventType_WorkflowExecutionTerminated:
		f.s.terminated = true

	case history.EventType_ActivityScheduled:
		a, ok := e.Attributes.(*history.ActivityScheduledAttributes)
		if !ok {
			f.orphan(e)
			return
		}

		f.activityBySeq[e.SequenceID] = a.ActivityID
		f.s.activities[a.ActivityID] = &Lifecycle{State: StateScheduled, ScheduleEventID: e.SequenceID}

	case history.EventType_ActivityStarted:
		f.refine(e, f.activityBySeq, f.s.activities, StateStarted)

	case history.EventType_ActivityCompleted:
		if l := f.refine(e, f.activityBySeq, f.s.activities, StateCompleted); l != nil {
			if a, ok := e.Attributes.(*history.ActivityCompletedAttributes); ok {
				l.Result = a.Result
			}
		}

	case history.EventType_ActivityFailed:
		if l := f.refine(e, f.activityBySeq, f.s.activities, StateFailed); l != nil {
			if a, ok := e.Attributes.(*history.ActivityFailedAttributes); ok {
				l.Reason = a.Reason
				l.Error = a.Error
			}
		}

	case history.EventType_ActivityCanceled:
		f.refine(e, f.activityBySeq, f.s.activities, StateCanceled)

	case history.EventType_ActivityTimedOut:
		if l := f.refine(e, f.activityBySeq, f.s.activities, StateTimedOut); l != nil {
			if a, ok := e.Attributes.(*history.ActivityTimedOutAttributes); ok {
				l.Reason = a.TimeoutType
			}
		}

	case history.EventType_TimerStarted:
		a, ok := e.Attributes.(*history.TimerStartedAttributes)
		if !ok {
			f.orphan(e)
			return
		}

		f.timerBySeq[e.SequenceID] = a.TimerID
		f.s.timers[a.TimerID] = &Lifecycle{State: StateScheduled, ScheduleEventID: e.SequenceID}

	case history.EventType_TimerFired:
		f.refine(e, f.timerBySeq, f.s.timers, StateCompleted)

	case history.EventType_MarkerRecorded:
		a, ok := e.Attributes.(*history.MarkerRecordedAttributes)
		if !ok {
			f.orphan(e)
			return
		}

		if name, ok := core.IsVariableMarker(a.Name); ok {
			f.s.variables[name] = f.decode(e, a.Details)
			return
		}

		f.s.markers[a.Name] = a.Details

	case history.EventType_SubWorkflowInitiated:
		a, ok := e.Attributes.(*history.SubWorkflowInitiatedAttributes)
		if !ok {
			f.orphan(e)
			return
		}

		f.subWorkflowBySeq[e.SequenceID] = a.Control
		f.s.subWorkflows[a.Control] = &Lifecycle{State: StateScheduled, ScheduleEventID: e.SequenceID}

	case history.EventType_SubWorkflowStarted:
		f.refine(e, f.subWorkflowBySeq, f.s.subWorkflows, StateStarted)

	case history.EventType_SubWorkflowCompleted:
		if l := f.refine(e, f.subWorkflowBySeq, f.s.subWorkflows, StateCompleted); l != nil {
			if a, ok := e.Attributes.(*history.SubWorkflowCompletedAttributes); ok {
				l.Result = a.Result
			}
		}

	case history.EventType_SubWorkflowFailed:
		if l := f.refine(e, f.subWorkflowBySeq, f.s.subWorkflows, StateFailed); l != nil {
			if a, ok := e.Attributes.(*history.SubWorkflowFailedAttributes); ok {
				l.Reason = a.Reason
				l.Error = a.Error
			}
		}

	case history.EventType_SubWorkflowTimedOut:
		f.refine(e, f.subWorkflowBySeq, f.s.subWorkflows, StateTimedOut)

	case history.EventType_SubWorkflowTerminated, history.EventType_SubWorkflowCanceled:
		f.refine(e, f.subWorkflowBySeq, f.s.subWorkflows, StateCanceled)
	}
}

// refine resolves the correlation id of e through its initiating event and moves the matching
// lifecycle to state. It returns the lifecycle if it was updated.
func (f *folder) refine(e *history.Event, bySeq map[int64]string, lifecycles map[string]*Lifecycle, state State) *Lifecycle {
	id, ok := bySeq[e.ScheduleEventID]
	if !ok {
		f.orphan(e)
		return nil
	}

	l := lifecycles[id]
	if l == nil || l.ScheduleEventID != e.ScheduleEventID {
		// The correlation id was scheduled again later, this event belongs to a superseded lifecycle.
		return nil
	}

	if !l.refine(state) {
		return nil
	}

	return l
}

func (f *folder) orphan(e *history.Event) {
	f.s.orphans = append(f.s.orphans, e)
}

func (f *folder) decode(e *history.Event, p payload.Payload) any {
	v, err := converter.Value(f.attributesDecoder, p)
	if err != nil {
		f.orphan(e)
		return nil
	}

	return v
}
