package homie

import (
	"fmt"
	"sort"
	"strings"
)

// Device is a Homie device: its attributes and the nodes it announced.
type Device struct {
	id         string
	events     notifier
	attributes map[string]string

	nodes map[string]*Node
	// order holds ids in completion order.
	order   []string
	pending map[string]*pendingChild

	initializing bool
}

func newDevice(events notifier, id string) *Device {
	return &Device{
		id:           id,
		events:       events,
		attributes:   make(map[string]string),
		nodes:        make(map[string]*Node),
		pending:      make(map[string]*pendingChild),
		initializing: true,
	}
}

// route handles a topic relative to the device, e.g. "$state" or "dht/$name".
func (d *Device) route(topic, payload string) error {
	switch {
	case topic == AttrNodes:
		d.attributes[topic] = payload
		d.announce(parseIDList(payload))
	case isAttribute(topic):
		d.attributes[topic] = payload
		if !d.initializing && d.pendingCount() == 0 {
			d.events.deviceUpdated(d, topic, payload)
		}
	default:
		nodeID, sub, ok := strings.Cut(topic, separator)
		if !ok || nodeID == "" || sub == "" {
			return fmt.Errorf("%w: %q under device %s", ErrMalformedTopic, topic, d.id)
		}
		if n, ok := d.nodes[nodeID]; ok {
			return n.route(sub, payload)
		}
		child, ok := d.pending[nodeID]
		if !ok {
			child = &pendingChild{data: newBuffer()}
			d.pending[nodeID] = child
		}
		child.data.set(sub, payload)
		d.promote(nodeID)
	}
	return nil
}

// announce handles a $nodes payload. An empty list drops every pending node.
func (d *Device) announce(ids []string) {
	if len(ids) == 0 {
		d.pending = make(map[string]*pendingChild)
		return
	}
	for _, id := range ids {
		if _, ok := d.nodes[id]; ok {
			continue
		}
		child, ok := d.pending[id]
		if !ok {
			d.pending[id] = &pendingChild{announced: true, data: newBuffer()}
			continue
		}
		if !child.announced {
			child.announced = true
			d.promote(id)
		}
	}
}

// promote moves a pending node to the complete set once it is announced and
// carries every required attribute, replaying its buffered topics.
func (d *Device) promote(nodeID string) {
	child := d.pending[nodeID]
	if child == nil || !child.announced || !child.data.has(nodeRequired) {
		return
	}
	delete(d.pending, nodeID)

	n := newNode(d, nodeID)
	d.nodes[nodeID] = n
	d.order = append(d.order, nodeID)

	child.data.drain(nodeRequired, func(topic, payload string) {
		if err := n.route(topic, payload); err != nil {
			d.events.log().Debug("dropping buffered node topic", "node", n.Path(), "topic", topic, "error", err)
		}
	})
	n.initializing = false

	if !d.initializing {
		n.discover()
	}
}

// discover emits device-discovered followed by the discovery of every node
// completed so far.
func (d *Device) discover() {
	d.events.deviceDiscovered(d)
	for _, id := range d.order {
		d.nodes[id].discover()
	}
}

func (d *Device) pendingCount() int {
	count := 0
	for _, child := range d.pending {
		if child.announced {
			count++
		}
	}
	return count
}

// ID returns the device id.
func (d *Device) ID() string { return d.id }

// Attribute returns an attribute by name, with or without the leading "$".
func (d *Device) Attribute(name string) (string, bool) {
	v, ok := d.attributes[attributeKey(name)]
	return v, ok
}

// Attributes returns a copy of all attributes keyed without the leading "$".
func (d *Device) Attributes() map[string]string { return publicAttributes(d.attributes) }

// Name returns $name.
func (d *Device) Name() string { return d.attributes[AttrName] }

// State returns $state.
func (d *Device) State() string { return d.attributes[AttrState] }

// Convention returns the Homie version from $homie.
func (d *Device) Convention() string { return d.attributes[AttrHomie] }

// IsReady reports whether every announced node is complete and the device
// state is ready or alert.
func (d *Device) IsReady() bool {
	if d.pendingCount() > 0 {
		return false
	}
	state := d.State()
	return state == StateReady || state == StateAlert
}

// Node returns a complete node.
func (d *Device) Node(id string) (*Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", d.id, id, ErrNodeNotFound)
	}
	return n, nil
}

// NodeIDs returns the ids of complete nodes in completion order.
func (d *Device) NodeIDs() []string {
	return append([]string(nil), d.order...)
}

// Nodes returns complete nodes in completion order.
func (d *Device) Nodes() []*Node {
	out := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// PendingNodeIDs returns announced nodes still missing attributes, sorted.
func (d *Device) PendingNodeIDs() []string {
	var ids []string
	for id, child := range d.pending {
		if child.announced {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DeepCopy returns a detached copy of the device and its tree. The copy emits
// no events and is safe to keep after the handler or query returns.
func (d *Device) DeepCopy() *Device {
	cp := &Device{
		id:           d.id,
		events:       noopNotifier{},
		attributes:   make(map[string]string, len(d.attributes)),
		nodes:        make(map[string]*Node, len(d.nodes)),
		order:        append([]string(nil), d.order...),
		pending:      make(map[string]*pendingChild, len(d.pending)),
		initializing: d.initializing,
	}
	for k, v := range d.attributes {
		cp.attributes[k] = v
	}
	for id, n := range d.nodes {
		cp.nodes[id] = n.deepCopy(cp)
	}
	for id, child := range d.pending {
		cp.pending[id] = &pendingChild{announced: child.announced}
	}
	return cp
}
