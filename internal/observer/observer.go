package observer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homiewatch/internal/history"
	"github.com/nerrad567/homiewatch/internal/homie"
	"github.com/nerrad567/homiewatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/homiewatch/internal/metrics"
)

// Event channel names, used as WebSocket subscription channels.
const (
	ChannelDeviceDiscovered   = "device.discovered"
	ChannelDeviceUpdated      = "device.updated"
	ChannelNodeDiscovered     = "node.discovered"
	ChannelNodeUpdated        = "node.updated"
	ChannelPropertyDiscovered = "property.discovered"
	ChannelPropertyUpdated    = "property.updated"
)

// Sink names used in logs and the sink error counter.
const (
	sinkHistory   = "history"
	sinkTelemetry = "telemetry"
)

// historyTimeout bounds a single history insert.
const historyTimeout = 2 * time.Second

// Broadcaster publishes an event on a named channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Recorder persists property values. Record is called while the discovery
// tree is locked and must return quickly; history.AsyncRecorder queues the
// write instead of waiting on the database.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Telemetry writes typed property values to a time-series store.
type Telemetry interface {
	WriteProperty(s influxdb.Sample) bool
}

// Counters counts messages and events.
type Counters interface {
	Message(accepted bool)
	Discovered(kind string)
	Updated(kind string)
	SinkError(sink string)
}

// Logger is the logging interface used by the observer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the sinks. Nil sinks are skipped.
type Deps struct {
	Hub       Broadcaster
	History   Recorder
	Telemetry Telemetry
	Metrics   Counters
	Logger    Logger
}

// Observer turns discovery tree events into sink writes.
type Observer struct {
	hub       Broadcaster
	history   Recorder
	telemetry Telemetry
	metrics   Counters
	logger    Logger
	now       func() time.Time
	newID     func() string
}

// New creates an observer writing to the sinks in deps.
func New(deps Deps) *Observer {
	o := &Observer{
		hub:       deps.Hub,
		history:   deps.History,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	if o.logger == nil {
		o.logger = noopLogger{}
	}
	return o
}

// Event is the payload broadcast for every tree event.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Device    string            `json:"device"`
	Node      string            `json:"node,omitempty"`
	Property  string            `json:"property,omitempty"`
	Attribute string            `json:"attribute,omitempty"`
	Raw       string            `json:"raw,omitempty"`
	Value     *homie.Value      `json:"value,omitempty"`
	Attrs     map[string]string `json:"attributes,omitempty"`
	Time      time.Time         `json:"time"`
}

func (o *Observer) event(channel, device string) Event {
	return Event{ID: o.newID(), Type: channel, Device: device, Time: o.now().UTC()}
}

// Handlers returns the handler set to install with homie.Client.SetHandlers.
func (o *Observer) Handlers() homie.Handlers {
	return homie.Handlers{
		DeviceDiscovered:   o.deviceDiscovered,
		DeviceUpdated:      o.deviceUpdated,
		NodeDiscovered:     o.nodeDiscovered,
		NodeUpdated:        o.nodeUpdated,
		PropertyDiscovered: o.propertyDiscovered,
		PropertyUpdated:    o.propertyUpdated,
	}
}

// MessageHandler returns an MQTT message handler feeding client. Topics that
// are not device topics, such as broadcasts, are counted and dropped quietly.
func (o *Observer) MessageHandler(client *homie.Client) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		err := client.Submit(topic, payload)
		if o.metrics != nil {
			o.metrics.Message(err == nil)
		}
		if errors.Is(err, homie.ErrMalformedTopic) {
			o.logger.Debug("ignoring non-device topic", "topic", topic)
			return nil
		}
		return err
	}
}

func (o *Observer) deviceDiscovered(d *homie.Device) {
	o.logger.Info("device discovered", "device", d.ID(), "name", d.Name(), "state", d.State(), "nodes", len(d.NodeIDs()))
	o.count(metrics.KindDevice, true)

	e := o.event(ChannelDeviceDiscovered, d.ID())
	e.Attrs = d.Attributes()
	o.broadcast(e)
}

func (o *Observer) deviceUpdated(d *homie.Device, attribute, value string) {
	o.logger.Debug("device updated", "device", d.ID(), "attribute", attribute, "value", value)
	o.count(metrics.KindDevice, false)

	e := o.event(ChannelDeviceUpdated, d.ID())
	e.Attribute = attribute
	e.Raw = value
	o.broadcast(e)
}

func (o *Observer) nodeDiscovered(n *homie.Node) {
	o.logger.Info("node discovered", "device", n.Device().ID(), "node", n.ID(), "type", n.Type(), "properties", len(n.PropertyIDs()))
	o.count(metrics.KindNode, true)

	e := o.event(ChannelNodeDiscovered, n.Device().ID())
	e.Node = n.ID()
	e.Attrs = n.Attributes()
	o.broadcast(e)
}

func (o *Observer) nodeUpdated(n *homie.Node, attribute, value string) {
	o.logger.Debug("node updated", "device", n.Device().ID(), "node", n.ID(), "attribute", attribute, "value", value)
	o.count(metrics.KindNode, false)

	e := o.event(ChannelNodeUpdated, n.Device().ID())
	e.Node = n.ID()
	e.Attribute = attribute
	e.Raw = value
	o.broadcast(e)
}

func (o *Observer) propertyDiscovered(p *homie.Property) {
	n := p.Node()
	o.logger.Info("property discovered", "device", n.Device().ID(), "node", n.ID(), "property", p.ID(), "datatype", p.Datatype())
	o.count(metrics.KindProperty, true)

	e := o.event(ChannelPropertyDiscovered, n.Device().ID())
	e.Node = n.ID()
	e.Property = p.ID()
	e.Attrs = p.Attributes()
	o.broadcast(e)
}

func (o *Observer) propertyUpdated(p *homie.Property, v homie.Value) {
	n := p.Node()
	deviceID := n.Device().ID()
	raw, _ := p.Raw()
	o.logger.Debug("property updated", "device", deviceID, "node", n.ID(), "property", p.ID(), "value", raw)
	o.count(metrics.KindProperty, false)

	// NaN and Inf stay in Raw; JSON and line protocol cannot carry them.
	if !homie.IsFinite(v.Value) {
		o.logger.Warn("property value is not a finite number",
			"device", deviceID, "node", n.ID(), "property", p.ID(), "value", raw)
		v.Value = nil
	}

	e := o.event(ChannelPropertyUpdated, deviceID)
	e.Node = n.ID()
	e.Property = p.ID()
	e.Raw = raw
	e.Value = &v
	o.broadcast(e)

	o.record(history.Entry{
		DeviceID:   deviceID,
		NodeID:     n.ID(),
		PropertyID: p.ID(),
		Value:      raw,
		Datatype:   p.Datatype(),
		Unit:       v.Unit,
		RecordedAt: e.Time,
	})

	if o.telemetry != nil {
		var unit string
		if v.Unit != nil {
			unit = *v.Unit
		}
		o.telemetry.WriteProperty(influxdb.Sample{
			DeviceID:   deviceID,
			NodeID:     n.ID(),
			PropertyID: p.ID(),
			Unit:       unit,
			Value:      v.Value,
			Time:       e.Time,
		})
	}
}

func (o *Observer) broadcast(e Event) {
	if o.hub != nil {
		o.hub.Broadcast(e.Type, e)
	}
}

func (o *Observer) record(entry history.Entry) {
	if o.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := o.history.Record(ctx, entry); err != nil {
		o.logger.Warn("recording property history failed",
			"device", entry.DeviceID, "node", entry.NodeID, "property", entry.PropertyID, "error", err)
		o.sinkError(sinkHistory)
	}
}

// HistoryError reports an asynchronous history write failure.
func (o *Observer) HistoryError(err error) {
	o.logger.Warn("history write failed", "error", err)
	o.sinkError(sinkHistory)
}

// TelemetryError reports an asynchronous telemetry write failure.
func (o *Observer) TelemetryError(err error) {
	o.logger.Warn("telemetry write failed", "error", err)
	o.sinkError(sinkTelemetry)
}

func (o *Observer) sinkError(sink string) {
	if o.metrics != nil {
		o.metrics.SinkError(sink)
	}
}

func (o *Observer) count(kind string, discovered bool) {
	if o.metrics == nil {
		return
	}
	if discovered {
		o.metrics.Discovered(kind)
		return
	}
	o.metrics.Updated(kind)
}
