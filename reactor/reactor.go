package reactor

import "github.com/avgx/pion/vocabulary"

// NodeType classifies a reactor's role in the graph (spec §3).
type NodeType int

const (
	Collection NodeType = iota
	Processing
	Storage
)

func (t NodeType) String() string {
	switch t {
	case Collection:
		return "collection"
	case Processing:
		return "processing"
	case Storage:
		return "storage"
	default:
		return "unknown"
	}
}

// Reactor is one node in the graph: it consumes events delivered to
// it and may emit new ones via the Engine it was registered with.
// UpdateVocabulary is a lifecycle call forwarded even while the
// reactor is stopped (spec §4.8: "a stopped reactor silently drops
// events but still forwards lifecycle calls like update_vocabulary").
type Reactor interface {
	Process(ev *Event)
	UpdateVocabulary(v vocabulary.Vocabulary)
}
