package homie

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a Logger that discards all output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client assembles Homie devices from a stream of MQTT messages.
type Client struct {
	mu sync.Mutex

	prefix  string
	devices map[string]*Device
	// order holds ids in completion order.
	order   []string
	pending map[string]*buffer

	handlers      Handlers
	handlerPanics uint64
	logger        Logger
}

// Stats is a point-in-time summary of the tree.
type Stats struct {
	Devices        int    `json:"devices"`
	ReadyDevices   int    `json:"ready_devices"`
	PendingDevices int    `json:"pending_devices"`
	Nodes          int    `json:"nodes"`
	PendingNodes   int    `json:"pending_nodes"`
	Properties     int    `json:"properties"`
	HandlerPanics  uint64 `json:"handler_panics"`
}

// NewClient creates a client for devices under prefix. An empty prefix means
// DefaultPrefix.
func NewClient(prefix string) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{
		prefix:  strings.TrimSuffix(prefix, separator),
		devices: make(map[string]*Device),
		pending: make(map[string]*buffer),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// Prefix returns the base topic the client accepts.
func (c *Client) Prefix() string { return c.prefix }

// SetHandlers replaces all six handlers at once.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// OnDeviceDiscovered replaces the device-discovered handler.
func (c *Client) OnDeviceDiscovered(fn func(d *Device)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.DeviceDiscovered = fn
}

// OnDeviceUpdated replaces the device-updated handler.
func (c *Client) OnDeviceUpdated(fn func(d *Device, attribute, value string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.DeviceUpdated = fn
}

// OnNodeDiscovered replaces the node-discovered handler.
func (c *Client) OnNodeDiscovered(fn func(n *Node)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.NodeDiscovered = fn
}

// OnNodeUpdated replaces the node-updated handler.
func (c *Client) OnNodeUpdated(fn func(n *Node, attribute, value string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.NodeUpdated = fn
}

// OnPropertyDiscovered replaces the property-discovered handler.
func (c *Client) OnPropertyDiscovered(fn func(p *Property)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.PropertyDiscovered = fn
}

// OnPropertyUpdated replaces the property-updated handler.
func (c *Client) OnPropertyUpdated(fn func(p *Property, v Value)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.PropertyUpdated = fn
}

// Submit processes one message. Handlers fire before Submit returns.
//
// Returns ErrMalformedTopic or ErrInvalidPayload when the message was dropped.
func (c *Client) Submit(topic string, payload []byte) error {
	if !utf8.Valid(payload) {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, topic)
	}
	deviceID, rest, err := c.split(topic)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.devices[deviceID]; ok {
		return d.route(rest, string(payload))
	}
	buf, ok := c.pending[deviceID]
	if !ok {
		buf = newBuffer()
		c.pending[deviceID] = buf
	}
	buf.set(rest, string(payload))
	c.promote(deviceID)
	return nil
}

// split strips the prefix and returns the device id and the remaining topic.
func (c *Client) split(topic string) (deviceID, rest string, err error) {
	tail, ok := strings.CutPrefix(topic, c.prefix+separator)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is outside prefix %q", ErrMalformedTopic, topic, c.prefix)
	}
	deviceID, rest, ok = strings.Cut(tail, separator)
	if !ok || deviceID == "" || rest == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	if isAttribute(deviceID) {
		return "", "", fmt.Errorf("%w: %q is a broadcast topic", ErrMalformedTopic, topic)
	}
	if !isAttribute(rest) {
		nodeID, sub, ok := strings.Cut(rest, separator)
		if !ok || nodeID == "" || sub == "" {
			return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
		}
	}
	return deviceID, rest, nil
}

func (c *Client) promote(deviceID string) {
	buf := c.pending[deviceID]
	if !buf.has(deviceRequired) {
		return
	}
	delete(c.pending, deviceID)

	d := newDevice(c, deviceID)
	c.devices[deviceID] = d
	c.order = append(c.order, deviceID)

	buf.drain(deviceRequired, func(topic, payload string) {
		if err := d.route(topic, payload); err != nil {
			c.logger.Debug("dropping buffered device topic", "device", deviceID, "topic", topic, "error", err)
		}
	})
	d.initializing = false

	c.logger.Debug("homie device complete", "device", deviceID, "nodes", len(d.nodes), "pending_nodes", d.pendingCount())
	d.discover()
}

// Device returns a detached copy of a complete device.
func (c *Client) Device(id string) (*Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.devices[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrDeviceNotFound)
	}
	return d.DeepCopy(), nil
}

// Devices returns detached copies of all complete devices in completion order.
func (c *Client) Devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Device, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.devices[id].DeepCopy())
	}
	return out
}

// PendingDeviceIDs returns ids of devices still missing required attributes, sorted.
func (c *Client) PendingDeviceIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns counts over the current tree.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Devices:        len(c.devices),
		PendingDevices: len(c.pending),
		HandlerPanics:  c.handlerPanics,
	}
	for _, d := range c.devices {
		if d.IsReady() {
			s.ReadyDevices++
		}
		s.Nodes += len(d.nodes)
		s.PendingNodes += d.pendingCount()
		for _, n := range d.nodes {
			s.Properties += len(n.properties)
		}
	}
	return s
}
