package homie

import (
	"bufio"
	"os"
	"strings"
	"testing"
)

// event is one recorded notification.
type event struct {
	kind      string
	path      string
	attribute string
	value     string
	typed     any
}

// recorder is a notifier that keeps every event in order.
type recorder struct {
	events []event
}

func (r *recorder) deviceDiscovered(d *Device) {
	r.events = append(r.events, event{kind: "device_discovered", path: d.ID()})
}

func (r *recorder) deviceUpdated(d *Device, attribute, value string) {
	r.events = append(r.events, event{kind: "device_updated", path: d.ID(), attribute: attribute, value: value})
}

func (r *recorder) nodeDiscovered(n *Node) {
	r.events = append(r.events, event{kind: "node_discovered", path: n.Path()})
}

func (r *recorder) nodeUpdated(n *Node, attribute, value string) {
	r.events = append(r.events, event{kind: "node_updated", path: n.Path(), attribute: attribute, value: value})
}

func (r *recorder) propertyDiscovered(p *Property) {
	r.events = append(r.events, event{kind: "property_discovered", path: p.Path()})
}

func (r *recorder) propertyUpdated(p *Property, v Value) {
	r.events = append(r.events, event{kind: "property_updated", path: p.Path(), typed: v.Value})
}

func (r *recorder) log() Logger { return noopLogger{} }

func (r *recorder) of(kind string) []event {
	var out []event
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) kinds() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind
	}
	return out
}

// readyDevice returns a complete device in state ready with no nodes.
func readyDevice(events notifier) *Device {
	d := newDevice(events, "dev")
	d.attributes[AttrState] = StateReady
	d.initializing = false
	return d
}

// liveNode adds a complete node to d.
func liveNode(d *Device, id string) *Node {
	n := newNode(d, id)
	n.initializing = false
	d.nodes[id] = n
	d.order = append(d.order, id)
	return n
}

// route sends each "topic payload" line to fn, failing on error.
func route(t *testing.T, fn func(topic, payload string) error, lines ...string) {
	t.Helper()
	for _, line := range lines {
		topic, payload, _ := strings.Cut(line, " ")
		if err := fn(topic, payload); err != nil {
			t.Fatalf("route(%q) error = %v", line, err)
		}
	}
}

// loadCapture reads a message capture: one "<topic> <payload>" per line,
// blank lines and # comments skipped.
func loadCapture(t *testing.T, path string) [][2]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	defer f.Close()

	var msgs [][2]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topic, payload, _ := strings.Cut(line, " ")
		msgs = append(msgs, [2]string{topic, payload})
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read capture: %v", err)
	}
	return msgs
}
