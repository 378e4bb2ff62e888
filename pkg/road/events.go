package road

import "github.com/chazu/asphalt/pkg/ids"

// Event is a change notification. Subscribers receive events synchronously
// once the mutation that produced them has completed.
type Event interface {
	event()
}

type (
	NodeAdded      struct{ Node Node }
	NodeRemoved    struct{ ID ids.NodeID }
	SegmentAdded   struct{ Segment Segment }
	SegmentRemoved struct{ ID ids.SegmentID }
	TreeAdded      struct{ Tree Tree }
	TreeRemoved    struct{ ID ids.TreeID }
)

func (NodeAdded) event()      {}
func (NodeRemoved) event()    {}
func (SegmentAdded) event()   {}
func (SegmentRemoved) event() {}
func (TreeAdded) event()      {}
func (TreeRemoved) event()    {}

// Subscribe registers fn for change events and returns a function that
// removes the registration.
func (g *Graph) Subscribe(fn func(Event)) (cancel func()) {
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	return func() { delete(g.subs, id) }
}

func (g *Graph) emit(events []Event) {
	if len(g.subs) == 0 {
		return
	}
	keys := make([]int, 0, len(g.subs))
	for k := range g.subs {
		keys = append(keys, k)
	}
	sortInts(keys)
	for _, ev := range events {
		for _, k := range keys {
			g.subs[k](ev)
		}
	}
}
