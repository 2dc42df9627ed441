package homie

import (
	"fmt"
	"sort"
	"strings"
)

// Node is a logical unit of a device grouping related properties.
type Node struct {
	id         string
	device     *Device
	events     notifier
	attributes map[string]string

	properties map[string]*Property
	// order holds ids in completion order.
	order   []string
	pending map[string]*pendingChild
	// values holds the latest value per property id until it completes.
	values map[string]string

	initializing bool
}

func newNode(device *Device, id string) *Node {
	return &Node{
		id:           id,
		device:       device,
		events:       device.events,
		attributes:   make(map[string]string),
		properties:   make(map[string]*Property),
		pending:      make(map[string]*pendingChild),
		values:       make(map[string]string),
		initializing: true,
	}
}

// live reports whether events for this node may be delivered.
func (n *Node) live() bool {
	return !n.initializing && !n.device.initializing
}

// route handles a topic relative to the node, e.g. "$name", "temp/$unit" or "temp".
func (n *Node) route(topic, payload string) error {
	switch {
	case topic == AttrProperties:
		n.attributes[topic] = payload
		n.announce(parseIDList(payload))
	case isAttribute(topic):
		n.attributes[topic] = payload
		if n.live() {
			n.events.nodeUpdated(n, topic, payload)
		}
	default:
		propertyID, sub, nested := strings.Cut(topic, separator)
		if propertyID == "" {
			return fmt.Errorf("%w: empty property id under node %s", ErrMalformedTopic, n.id)
		}
		if !nested {
			n.receiveValue(propertyID, payload)
			return nil
		}
		if sub == "" {
			return fmt.Errorf("%w: empty sub-topic for property %s", ErrMalformedTopic, propertyID)
		}
		// Commands such as "/set" share the wildcard subscription.
		if !isAttribute(sub) {
			return nil
		}
		n.receiveAttribute(propertyID, sub, payload)
	}
	return nil
}

func (n *Node) announce(ids []string) {
	for _, id := range ids {
		if _, ok := n.properties[id]; ok {
			continue
		}
		child, ok := n.pending[id]
		if !ok {
			n.pending[id] = &pendingChild{announced: true, data: newBuffer()}
			continue
		}
		if !child.announced {
			child.announced = true
			n.promote(id)
		}
	}
}

func (n *Node) receiveAttribute(propertyID, key, payload string) {
	if p, ok := n.properties[propertyID]; ok {
		p.setAttribute(key, payload)
		return
	}
	child, ok := n.pending[propertyID]
	if !ok {
		child = &pendingChild{data: newBuffer()}
		n.pending[propertyID] = child
	}
	child.data.set(key, payload)
	n.promote(propertyID)
}

func (n *Node) receiveValue(propertyID, raw string) {
	if p, ok := n.properties[propertyID]; ok {
		p.setValue(raw)
		if n.live() {
			n.notifyValue(p)
		}
		return
	}
	n.values[propertyID] = raw
}

// promote moves a pending property to the complete set once it is announced
// and carries every required attribute.
func (n *Node) promote(propertyID string) {
	child := n.pending[propertyID]
	if child == nil || !child.announced || !child.data.has(propRequired) {
		return
	}
	delete(n.pending, propertyID)

	p := newProperty(n, propertyID)
	child.data.drain(propRequired, p.setAttribute)
	if raw, ok := n.values[propertyID]; ok {
		p.setValue(raw)
		delete(n.values, propertyID)
	}
	n.properties[propertyID] = p
	n.order = append(n.order, propertyID)

	if n.live() {
		n.discoverProperty(p)
	}
}

// discoverProperty emits property-discovered, then one update when a value is
// already known.
func (n *Node) discoverProperty(p *Property) {
	n.events.propertyDiscovered(p)
	if p.hasRaw {
		n.notifyValue(p)
	}
}

func (n *Node) notifyValue(p *Property) {
	if !n.device.IsReady() {
		return
	}
	v, err := p.Snapshot()
	if err != nil {
		n.events.log().Warn("dropping property update", "property", p.Path(), "error", err)
		return
	}
	n.events.propertyUpdated(p, v)
}

// discover emits node-discovered followed by the discovery of every property
// completed so far.
func (n *Node) discover() {
	n.events.nodeDiscovered(n)
	for _, id := range n.order {
		n.discoverProperty(n.properties[id])
	}
}

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// Device returns the device owning the node.
func (n *Node) Device() *Device { return n.device }

// Path returns "device/node".
func (n *Node) Path() string { return n.device.id + separator + n.id }

// Attribute returns an attribute by name, with or without the leading "$".
func (n *Node) Attribute(name string) (string, bool) {
	v, ok := n.attributes[attributeKey(name)]
	return v, ok
}

// Attributes returns a copy of all attributes keyed without the leading "$".
func (n *Node) Attributes() map[string]string { return publicAttributes(n.attributes) }

// Name returns $name.
func (n *Node) Name() string { return n.attributes[AttrName] }

// Type returns $type.
func (n *Node) Type() string { return n.attributes[AttrType] }

// Property returns a complete property.
func (n *Node) Property(id string) (*Property, error) {
	p, ok := n.properties[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", n.Path(), id, ErrPropertyNotFound)
	}
	return p, nil
}

// PropertyIDs returns the ids of complete properties in completion order.
func (n *Node) PropertyIDs() []string {
	return append([]string(nil), n.order...)
}

// Properties returns complete properties in completion order.
func (n *Node) Properties() []*Property {
	out := make([]*Property, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.properties[id])
	}
	return out
}

// PendingPropertyIDs returns announced properties still missing attributes, sorted.
func (n *Node) PendingPropertyIDs() []string {
	var ids []string
	for id, child := range n.pending {
		if child.announced {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Value returns the typed view of a complete property.
func (n *Node) Value(propertyID string) (Value, error) {
	p, err := n.Property(propertyID)
	if err != nil {
		return Value{}, err
	}
	return p.Snapshot()
}

func (n *Node) deepCopy(device *Device) *Node {
	cp := &Node{
		id:           n.id,
		device:       device,
		events:       device.events,
		attributes:   make(map[string]string, len(n.attributes)),
		properties:   make(map[string]*Property, len(n.properties)),
		order:        append([]string(nil), n.order...),
		pending:      make(map[string]*pendingChild, len(n.pending)),
		values:       make(map[string]string),
		initializing: n.initializing,
	}
	for k, v := range n.attributes {
		cp.attributes[k] = v
	}
	for id, p := range n.properties {
		cp.properties[id] = p.deepCopy(cp)
	}
	for id, child := range n.pending {
		cp.pending[id] = &pendingChild{announced: child.announced}
	}
	return cp
}
