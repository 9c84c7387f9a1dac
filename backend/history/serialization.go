package history

import (
	"encoding/json"
	"fmt"
)

func (e *Event) UnmarshalJSON(data []byte) error {
	type Aevent Event
	a := &struct {
		// Attributes allows us to defer unmarshaling the events. Has to match the struct tag in Event
		Attributes json.RawMessage `json:"attr,omitempty"`
		*Aevent
	}{
		Aevent: (*Aevent)(e),
	}

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	attributes, err := DeserializeAttributes(e.Type, a.Attributes)
	if err != nil {
		return err
	}

	e.Attributes = attributes

	return nil
}

func SerializeAttributes(attributes any) ([]byte, error) {
	return json.Marshal(attributes)
}

func DeserializeAttributes(eventType EventType, attributes []byte) (attr any, err error) {
	switch eventType {
	case EventType_WorkflowExecutionStarted:
		attr = &ExecutionStartedAttributes{}
	case EventType_WorkflowExecutionCompleted:
		attr = &ExecutionCompletedAttributes{}
	case EventType_WorkflowExecutionFailed:
		attr = &ExecutionFailedAttributes{}
	case EventType_WorkflowExecutionTerminated:
		attr = &ExecutionTerminatedAttributes{}

	case EventType_DecisionTaskStarted:
		attr = &DecisionTaskStartedAttributes{}
	case EventType_DecisionTaskCompleted:
		attr = &DecisionTaskCompletedAttributes{}

	case EventType_ActivityScheduled:
		attr = &ActivityScheduledAttributes{}
	case EventType_ActivityStarted:
		attr = &ActivityStartedAttributes{}
	case EventType_ActivityCompleted:
		attr = &ActivityCompletedAttributes{}
	case EventType_ActivityFailed:
		attr = &ActivityFailedAttributes{}
	case EventType_ActivityCanceled:
		attr = &ActivityCanceledAttributes{}
	case EventType_ActivityTimedOut:
		attr = &ActivityTimedOutAttributes{}

	case EventType_TimerStarted:
		attr = &TimerStartedAttributes{}
	case EventType_TimerFired:
		attr = &TimerFiredAttributes{}

	case EventType_MarkerRecorded:
		attr = &MarkerRecordedAttributes{}

	case EventType_SubWorkflowInitiated:
		attr = &SubWorkflowInitiatedAttributes{}
	case EventType_SubWorkflowStarted:
		attr = &SubWorkflowStartedAttributes{}
	case EventType_SubWorkflowCompleted:
		attr = &SubWorkflowCompletedAttributes{}
	case EventType_SubWorkflowFailed:
		attr = &SubWorkflowFailedAttributes{}
	case EventType_SubWorkflowTimedOut:
		attr = &SubWorkflowTimedOutAttributes{}
	case EventType_SubWorkflowTerminated:
		attr = &SubWorkflowTerminatedAttributes{}
	case EventType_SubWorkflowCanceled:
		attr = &SubWorkflowCanceledAttributes{}

	default:
		return nil, fmt.Errorf("unknown event type %d when deserializing attributes", eventType)
	}

	if len(attributes) == 0 {
		return attr, nil
	}

	if err := json.Unmarshal(attributes, &attr); err != nil {
		return nil, fmt.Errorf("deserializing %v attributes: %w", eventType, err)
	}

	return attr, nil
}
