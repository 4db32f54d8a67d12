// Package history provides the bounded undo/redo log kept by text prompt nodes.
//
// A Log holds two stacks of timestamped text snapshots. Pushing a new entry
// clears the redo stack, the way an editor forgets redo state after a fresh
// edit. Undo and redo move the caller's current text onto the opposite stack
// as a mirrored push, so an undo followed by a redo restores both the text and
// the stack sizes.
package history

import "time"

// DefaultCapacity is the maximum number of entries kept per stack.
const DefaultCapacity = 100

// Entry is a single text snapshot.
type Entry struct {
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Log is an undo/redo log. The zero value is ready to use with DefaultCapacity.
//
// Log is not safe for concurrent use; the owning graph serializes access.
type Log struct {
	UndoStack []Entry `json:"undo_stack,omitempty" yaml:"undo_stack,omitempty"`
	RedoStack []Entry `json:"redo_stack,omitempty" yaml:"redo_stack,omitempty"`

	// Capacity overrides DefaultCapacity when positive.
	Capacity int `json:"-" yaml:"-"`
}

func (l *Log) capacity() int {
	if l.Capacity > 0 {
		return l.Capacity
	}
	return DefaultCapacity
}

// Push records text on the undo stack and clears the redo stack.
// The oldest entry is evicted when the stack is full.
func (l *Log) Push(text string, at time.Time) {
	l.UndoStack = push(l.UndoStack, Entry{Text: text, Timestamp: at}, l.capacity())
	l.RedoStack = nil
}

// Undo pops the most recent undo entry and returns its text.
// The current text is pushed onto the redo stack.
// Returns false, and changes nothing, when there is nothing to undo.
func (l *Log) Undo(current string, at time.Time) (string, bool) {
	entry, rest, ok := pop(l.UndoStack)
	if !ok {
		return "", false
	}
	l.UndoStack = rest
	l.RedoStack = push(l.RedoStack, Entry{Text: current, Timestamp: at}, l.capacity())
	return entry.Text, true
}

// Redo pops the most recent redo entry and returns its text.
// The current text is pushed onto the undo stack without clearing redo.
func (l *Log) Redo(current string, at time.Time) (string, bool) {
	entry, rest, ok := pop(l.RedoStack)
	if !ok {
		return "", false
	}
	l.RedoStack = rest
	l.UndoStack = push(l.UndoStack, Entry{Text: current, Timestamp: at}, l.capacity())
	return entry.Text, true
}

// Latest returns the most recent undo entry.
func (l *Log) Latest() (Entry, bool) {
	if len(l.UndoStack) == 0 {
		return Entry{}, false
	}
	return l.UndoStack[len(l.UndoStack)-1], true
}

// CanUndo reports whether Undo would succeed.
func (l *Log) CanUndo() bool { return len(l.UndoStack) > 0 }

// CanRedo reports whether Redo would succeed.
func (l *Log) CanRedo() bool { return len(l.RedoStack) > 0 }

// Clone returns a deep copy of the log.
func (l *Log) Clone() Log {
	return Log{
		UndoStack: append([]Entry(nil), l.UndoStack...),
		RedoStack: append([]Entry(nil), l.RedoStack...),
		Capacity:  l.Capacity,
	}
}

func push(stack []Entry, e Entry, capacity int) []Entry {
	stack = append(stack, e)
	if over := len(stack) - capacity; over > 0 {
		// Copy down so the backing array does not grow without bound.
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

func pop(stack []Entry) (Entry, []Entry, bool) {
	if len(stack) == 0 {
		return Entry{}, stack, false
	}
	last := len(stack) - 1
	return stack[last], stack[:last], true
}
