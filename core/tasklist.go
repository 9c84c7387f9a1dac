package core

import (
	"database/sql"
	"errors"
	"regexp"
)

// TaskList routes scheduled activities to the workers polling it.
type TaskList string

var _ sql.Scanner = (*TaskList)(nil)

func (q TaskList) Value() (string, error) {
	return string(q), nil
}

func (q *TaskList) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*q = TaskList(v)
	case []byte:
		*q = TaskList(v)
	case nil:
		*q = TaskListDefault
	default:
		return errors.New("unsupported task list value")
	}

	return nil
}

const TaskListDefault = TaskList("default")

var validTaskListName = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,31}$`)

// ValidTaskList ensures that the task list name is valid.
func ValidTaskList(q TaskList) error {
	if !validTaskListName.MatchString(string(q)) {
		return errors.New("invalid task list name")
	}

	return nil
}
