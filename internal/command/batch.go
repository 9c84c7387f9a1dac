package command

import (
	"slices"
	"sync"
)

// Batch collects the commands of one tick. It is safe for concurrent use.
//
// Commands are de-duplicated by type and key: the first schedule or timer command for a key wins,
// while a later marker replaces an earlier marker of the same name in place.
type Batch struct {
	mu       sync.Mutex
	commands []Command
	index    map[batchKey]int
}

type batchKey struct {
	t   string
	key string
}

func NewBatch() *Batch {
	return &Batch{
		index: map[batchKey]int{},
	}
}

// Add adds a command to the batch and reports whether it was added or replaced an earlier one.
func (b *Batch) Add(c Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := batchKey{c.Type(), c.Key()}
	if i, ok := b.index[k]; ok {
		if _, marker := c.(*RecordMarkerCommand); marker {
			b.commands[i] = c
			return true
		}

		return false
	}

	b.index[k] = len(b.commands)
	b.commands = append(b.commands, c)

	return true
}

// Marker returns the marker command for name added in this batch, if any.
func (b *Batch) Marker(name string) (*RecordMarkerCommand, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[batchKey{(&RecordMarkerCommand{}).Type(), name}]
	if !ok {
		return nil, false
	}

	return b.commands[i].(*RecordMarkerCommand), true
}

// Timer returns the timer command for id added in this batch, if any.
func (b *Batch) Timer(id string) (*StartTimerCommand, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[batchKey{(&StartTimerCommand{}).Type(), id}]
	if !ok {
		return nil, false
	}

	return b.commands[i].(*StartTimerCommand), true
}

// Commands returns the commands in the order they were first added.
func (b *Batch) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.commands)
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.commands)
}
