package queue

// Strategy is the narrow interface a TaskQueue implementation must satisfy,
// whether built-in or user-supplied — replacing the duck-typed queue of the
// source (§9 design notes). Unknown strategy names are rejected at
// construction by the caller, not here.
type Strategy interface {
	Push(item any)
	Pop() (any, bool)
	Contains(eq func(any) bool) bool
	Size() int
	Clear()
}

// Kind enumerates the built-in strategies selectable at construction.
type Kind string

const (
	KindFIFO     Kind = "fifo"
	KindLIFO     Kind = "lifo"
	KindPriority Kind = "priority"
)

// New constructs a built-in strategy; any kind other than KindLIFO and
// KindPriority yields FIFO. priorityOf is only used by KindPriority and may
// be nil for the other kinds.
func New(kind Kind, priorityOf func(any) int) Strategy {
	switch kind {
	case KindLIFO:
		return NewLIFO()
	case KindPriority:
		return NewPriority(priorityOf)
	default:
		return NewFIFO()
	}
}
