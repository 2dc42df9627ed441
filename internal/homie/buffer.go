package homie

// buffer holds topics received for an entity that is not complete yet, in
// arrival order. Overwriting a topic keeps its original position.
type buffer struct {
	order    []string
	payloads map[string]string
}

func newBuffer() *buffer {
	return &buffer{payloads: make(map[string]string)}
}

func (b *buffer) set(topic, payload string) {
	if _, ok := b.payloads[topic]; !ok {
		b.order = append(b.order, topic)
	}
	b.payloads[topic] = payload
}

func (b *buffer) has(topics []string) bool {
	for _, t := range topics {
		if _, ok := b.payloads[t]; !ok {
			return false
		}
	}
	return true
}

// drain calls fn for the given topics first, in the given order, then for the
// remaining topics in arrival order.
func (b *buffer) drain(first []string, fn func(topic, payload string)) {
	seen := make(map[string]bool, len(first))
	for _, t := range first {
		seen[t] = true
		if p, ok := b.payloads[t]; ok {
			fn(t, p)
		}
	}
	for _, t := range b.order {
		if !seen[t] {
			fn(t, b.payloads[t])
		}
	}
}

// pendingChild is a node or property whose attributes are still arriving.
// Only announced children (listed in the parent's $nodes or $properties) are
// counted as pending; data for unannounced ids is kept until they are.
type pendingChild struct {
	announced bool
	data      *buffer
}
