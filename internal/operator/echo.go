package operator

import "github.com/openmined/trsync/internal/event"

// echoes holds the events the operator expects to see because it caused them.
// One expected event swallows exactly one occurrence.
type echoes struct {
	items []event.Event
}

func (e *echoes) push(ev event.Event) {
	e.items = append(e.items, ev)
}

func (e *echoes) consume(ev event.Event) bool {
	for i, item := range e.items {
		if item == ev {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return true
		}
	}
	return false
}

func (e *echoes) len() int {
	return len(e.items)
}
