package homie

import "fmt"

// Value is the typed view of a property: its name, optional unit and latest
// value converted to the declared datatype. Value is nil when nothing has been
// received yet.
type Value struct {
	Name  string  `json:"name"`
	Unit  *string `json:"unit"`
	Value any     `json:"value"`
}

// Property is a single readable or settable value of a node.
type Property struct {
	id         string
	node       *Node
	attributes map[string]string
	raw        string
	hasRaw     bool
}

func newProperty(node *Node, id string) *Property {
	return &Property{
		id:         id,
		node:       node,
		attributes: make(map[string]string),
	}
}

func (p *Property) setAttribute(key, value string) {
	p.attributes[key] = value
}

func (p *Property) setValue(raw string) {
	p.raw = raw
	p.hasRaw = true
}

// ID returns the property id.
func (p *Property) ID() string { return p.id }

// Node returns the node owning the property.
func (p *Property) Node() *Node { return p.node }

// Path returns "device/node/property".
func (p *Property) Path() string {
	return p.node.device.id + separator + p.node.id + separator + p.id
}

// Attribute returns an attribute by name, with or without the leading "$".
func (p *Property) Attribute(name string) (string, bool) {
	v, ok := p.attributes[attributeKey(name)]
	return v, ok
}

// Attributes returns a copy of all attributes keyed without the leading "$".
func (p *Property) Attributes() map[string]string { return publicAttributes(p.attributes) }

// Name returns $name.
func (p *Property) Name() string { return p.attributes[AttrName] }

// Datatype returns $datatype.
func (p *Property) Datatype() string { return p.attributes[AttrDatatype] }

// Format returns $format, e.g. the allowed values of an enum.
func (p *Property) Format() string { return p.attributes[AttrFormat] }

// Unit returns $unit when the device published one.
func (p *Property) Unit() (string, bool) {
	u, ok := p.attributes[AttrUnit]
	return u, ok
}

// Settable reports whether the property accepts commands on its /set topic.
func (p *Property) Settable() bool { return p.attributes[AttrSettable] == "true" }

// Raw returns the latest raw payload, if any.
func (p *Property) Raw() (string, bool) { return p.raw, p.hasRaw }

// Snapshot returns the typed view of the property.
func (p *Property) Snapshot() (Value, error) {
	v := Value{Name: p.Name()}
	if unit, ok := p.Unit(); ok {
		v.Unit = &unit
	}
	if !p.hasRaw {
		return v, nil
	}
	typed, err := Coerce(p.Datatype(), p.raw)
	if err != nil {
		return Value{}, fmt.Errorf("property %s: %w", p.Path(), err)
	}
	v.Value = typed
	return v, nil
}

// FormatValue renders v as a payload for this property's /set topic.
func (p *Property) FormatValue(v any) (string, error) {
	if !p.Settable() {
		return "", fmt.Errorf("property %s: %w", p.Path(), ErrNotSettable)
	}
	return FormatValue(p.Datatype(), p.Format(), v)
}

func (p *Property) deepCopy(node *Node) *Property {
	cp := *p
	cp.node = node
	cp.attributes = make(map[string]string, len(p.attributes))
	for k, v := range p.attributes {
		cp.attributes[k] = v
	}
	return &cp
}
