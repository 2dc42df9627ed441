package homie

import "strings"

// Handlers holds the six event callbacks. Nil callbacks are skipped.
//
// Callbacks run synchronously while the client lock is held. They receive live
// entities that may be read during the call; use Device.DeepCopy to keep one.
// Calling Client methods from a callback deadlocks. Attribute names are
// delivered without the leading "$".
//
// Discovery is announced parent first. A node or property that completes while
// its device is still pending is announced right after DeviceDiscovered,
// followed by its buffered value, so no callback ever names an entity whose
// parent has not been announced.
type Handlers struct {
	DeviceDiscovered   func(d *Device)
	DeviceUpdated      func(d *Device, attribute, value string)
	NodeDiscovered     func(n *Node)
	NodeUpdated        func(n *Node, attribute, value string)
	PropertyDiscovered func(p *Property)
	PropertyUpdated    func(p *Property, v Value)
}

// notifier is implemented by Client. Entities hold it as a non-owning
// reference to dispatch events.
type notifier interface {
	deviceDiscovered(d *Device)
	deviceUpdated(d *Device, attribute, value string)
	nodeDiscovered(n *Node)
	nodeUpdated(n *Node, attribute, value string)
	propertyDiscovered(p *Property)
	propertyUpdated(p *Property, v Value)
	log() Logger
}

// noopNotifier backs detached copies.
type noopNotifier struct{}

func (noopNotifier) deviceDiscovered(*Device)              {}
func (noopNotifier) deviceUpdated(*Device, string, string) {}
func (noopNotifier) nodeDiscovered(*Node)                  {}
func (noopNotifier) nodeUpdated(*Node, string, string)     {}
func (noopNotifier) propertyDiscovered(*Property)          {}
func (noopNotifier) propertyUpdated(*Property, Value)      {}
func (noopNotifier) log() Logger                           { return noopLogger{} }

func (c *Client) deviceDiscovered(d *Device) {
	if fn := c.handlers.DeviceDiscovered; fn != nil {
		c.invoke("device_discovered", func() { fn(d) })
	}
}

func (c *Client) deviceUpdated(d *Device, attribute, value string) {
	if fn := c.handlers.DeviceUpdated; fn != nil {
		c.invoke("device_updated", func() { fn(d, strings.TrimPrefix(attribute, sentinel), value) })
	}
}

func (c *Client) nodeDiscovered(n *Node) {
	if fn := c.handlers.NodeDiscovered; fn != nil {
		c.invoke("node_discovered", func() { fn(n) })
	}
}

func (c *Client) nodeUpdated(n *Node, attribute, value string) {
	if fn := c.handlers.NodeUpdated; fn != nil {
		c.invoke("node_updated", func() { fn(n, strings.TrimPrefix(attribute, sentinel), value) })
	}
}

func (c *Client) propertyDiscovered(p *Property) {
	if fn := c.handlers.PropertyDiscovered; fn != nil {
		c.invoke("property_discovered", func() { fn(p) })
	}
}

func (c *Client) propertyUpdated(p *Property, v Value) {
	if fn := c.handlers.PropertyUpdated; fn != nil {
		c.invoke("property_updated", func() { fn(p, v) })
	}
}

func (c *Client) log() Logger { return c.logger }

// invoke runs a handler, recovering and logging a panic.
func (c *Client) invoke(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.handlerPanics++
			c.logger.Error("homie handler panicked", "event", event, "panic", r)
		}
	}()
	fn()
}
