package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homiewatch/internal/homie"
)

// DeviceView is the JSON form of a discovered device.
type DeviceView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	State        string            `json:"state"`
	Convention   string            `json:"homie"`
	Ready        bool              `json:"ready"`
	Attributes   map[string]string `json:"attributes"`
	Nodes        []NodeView        `json:"nodes"`
	PendingNodes []string          `json:"pending_nodes,omitempty"`
}

// NodeView is the JSON form of a node.
type NodeView struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	Attributes        map[string]string `json:"attributes"`
	Properties        []PropertyView    `json:"properties"`
	PendingProperties []string          `json:"pending_properties,omitempty"`
}

// PropertyView is the JSON form of a property. Value is the raw payload
// converted to the declared datatype; ValueError is set when it does not
// convert.
type PropertyView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Datatype   string            `json:"datatype"`
	Format     string            `json:"format,omitempty"`
	Unit       *string           `json:"unit,omitempty"`
	Settable   bool              `json:"settable"`
	Attributes map[string]string `json:"attributes"`
	Raw        *string           `json:"raw,omitempty"`
	Value      any               `json:"value"`
	ValueError string            `json:"value_error,omitempty"`
}

func deviceView(d *homie.Device) DeviceView {
	v := DeviceView{
		ID:           d.ID(),
		Name:         d.Name(),
		State:        d.State(),
		Convention:   d.Convention(),
		Ready:        d.IsReady(),
		Attributes:   d.Attributes(),
		Nodes:        make([]NodeView, 0, len(d.NodeIDs())),
		PendingNodes: d.PendingNodeIDs(),
	}
	for _, n := range d.Nodes() {
		v.Nodes = append(v.Nodes, nodeView(n))
	}
	return v
}

func nodeView(n *homie.Node) NodeView {
	v := NodeView{
		ID:                n.ID(),
		Name:              n.Name(),
		Type:              n.Type(),
		Attributes:        n.Attributes(),
		Properties:        make([]PropertyView, 0, len(n.PropertyIDs())),
		PendingProperties: n.PendingPropertyIDs(),
	}
	for _, p := range n.Properties() {
		v.Properties = append(v.Properties, propertyView(p))
	}
	return v
}

// errNotFinite is reported for float values JSON cannot carry.
const errNotFinite = "value is not a finite number"

func propertyView(p *homie.Property) PropertyView {
	v := PropertyView{
		ID:         p.ID(),
		Name:       p.Name(),
		Datatype:   p.Datatype(),
		Format:     p.Format(),
		Settable:   p.Settable(),
		Attributes: p.Attributes(),
	}
	if unit, ok := p.Unit(); ok {
		v.Unit = &unit
	}
	if raw, ok := p.Raw(); ok {
		v.Raw = &raw
	}
	snap, err := p.Snapshot()
	if err != nil {
		v.ValueError = err.Error()
		return v
	}
	if !homie.IsFinite(snap.Value) {
		v.ValueError = errNotFinite
		return v
	}
	v.Value = snap.Value
	return v
}

// handleListDevices returns every discovered device.
//
// Query parameters:
//   - ready: "true" or "false" to filter on readiness
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var readyFilter *bool
	if raw := r.URL.Query().Get("ready"); raw != "" {
		ready, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "ready must be true or false")
			return
		}
		readyFilter = &ready
	}

	devices := s.tree.Devices()
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		if readyFilter != nil && d.IsReady() != *readyFilter {
			continue
		}
		views = append(views, deviceView(d))
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleListPendingDevices returns ids of devices still collecting their
// required attributes.
func (s *Server) handleListPendingDevices(w http.ResponseWriter, _ *http.Request) {
	ids := s.tree.PendingDeviceIDs()
	writeJSON(w, http.StatusOK, map[string]any{"devices": ids, "count": len(ids)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.tree.Device(chi.URLParam(r, "id"))
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceView(d))
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.lookupNode(r)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodeView(n))
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.lookupProperty(r)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, propertyView(p))
}

// SetPropertyRequest is the body of PUT .../properties/{property}.
type SetPropertyRequest struct {
	Value any `json:"value"`
}

// handleSetProperty publishes a value to the property's Homie /set topic.
// The tree itself is not changed: the device confirms by publishing the new
// value, which arrives through the normal subscription.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.lookupProperty(r)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	var req SetPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value field is required")
		return
	}

	payload, err := p.FormatValue(req.Value)
	if err != nil {
		writeTreeError(w, err)
		return
	}

	if s.mqtt == nil || !s.mqtt.IsConnected() {
		writeServiceUnavailable(w, "MQTT not connected")
		return
	}

	n := p.Node()
	topic := homie.SetTopic(s.tree.Prefix(), n.Device().ID(), n.ID(), p.ID())
	if err := s.mqtt.Publish(topic, []byte(payload), s.qos, false); err != nil {
		s.logger.Warn("publishing property set failed", "topic", topic, "error", err)
		writeServiceUnavailable(w, "failed to publish command")
		return
	}

	s.logger.Info("property set published", "topic", topic, "payload", payload,
		"request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"topic":   topic,
		"payload": payload,
	})
}

func (s *Server) lookupNode(r *http.Request) (*homie.Node, error) {
	d, err := s.tree.Device(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return d.Node(chi.URLParam(r, "node"))
}

func (s *Server) lookupProperty(r *http.Request) (*homie.Property, error) {
	n, err := s.lookupNode(r)
	if err != nil {
		return nil, err
	}
	return n.Property(chi.URLParam(r, "property"))
}
