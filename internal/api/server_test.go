package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homiewatch/internal/history"
	"github.com/nerrad567/homiewatch/internal/homie"
	"github.com/nerrad567/homiewatch/internal/infrastructure/config"
	"github.com/nerrad567/homiewatch/internal/infrastructure/logging"
)

// lampMessages builds a ready device "lamp" with a settable boolean, an enum
// and a float property.
var lampMessages = [][2]string{
	{"homie/lamp/$homie", "3.0.1"},
	{"homie/lamp/$name", "Desk Lamp"},
	{"homie/lamp/$state", "ready"},
	{"homie/lamp/$nodes", "light"},
	{"homie/lamp/light/$name", "Light"},
	{"homie/lamp/light/$type", "bulb"},
	{"homie/lamp/light/$properties", "power,mode,watts"},
	{"homie/lamp/light/power/$name", "Power"},
	{"homie/lamp/light/power/$datatype", "boolean"},
	{"homie/lamp/light/power/$settable", "true"},
	{"homie/lamp/light/power", "false"},
	{"homie/lamp/light/mode/$name", "Mode"},
	{"homie/lamp/light/mode/$datatype", "enum"},
	{"homie/lamp/light/mode/$format", "warm,cold"},
	{"homie/lamp/light/mode/$settable", "true"},
	{"homie/lamp/light/watts/$name", "Watts"},
	{"homie/lamp/light/watts/$datatype", "float"},
	{"homie/lamp/light/watts/$unit", "W"},
	{"homie/lamp/light/watts", "4.5"},
}

// sleepyMessages builds a complete device that is not ready.
var sleepyMessages = [][2]string{
	{"homie/sleepy/$homie", "3.0.1"},
	{"homie/sleepy/$name", "Sleepy"},
	{"homie/sleepy/$state", "sleeping"},
	{"homie/sleepy/$nodes", ""},
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	topics    []string
	payloads  []string
	retained  []bool
}

func (p *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, string(payload))
	p.retained = append(p.retained, retained)
	return nil
}

func (p *fakePublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

type fakeHistory struct {
	entries []history.Entry
	err     error
	limit   int
}

func (h *fakeHistory) List(_ context.Context, deviceID, nodeID, propertyID string, limit int) ([]history.Entry, error) {
	h.limit = limit
	if h.err != nil {
		return nil, h.err
	}
	var out []history.Entry
	for _, e := range h.entries {
		if e.DeviceID == deviceID && e.NodeID == nodeID && e.PropertyID == propertyID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDB struct{}

func (fakeDB) Stats() sql.DBStats { return sql.DBStats{OpenConnections: 1, Idle: 1} }

type testEnv struct {
	srv     *Server
	tree    *homie.Client
	pub     *fakePublisher
	history *fakeHistory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tree := homie.NewClient("homie")
	for _, msgs := range [][][2]string{lampMessages, sleepyMessages} {
		for _, m := range msgs {
			if err := tree.Submit(m[0], []byte(m[1])); err != nil {
				t.Fatalf("Submit(%s) error = %v", m[0], err)
			}
		}
	}

	env := &testEnv{
		tree:    tree,
		pub:     &fakePublisher{connected: true},
		history: &fakeHistory{},
	}

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  logging.Discard(),
		Tree:    tree,
		MQTT:    env.pub,
		History: env.history,
		DB:      fakeDB{},
		QoS:     1,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Tree: homie.NewClient("")}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without tree should fail")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" || body["mqtt"] != "connected" {
		t.Errorf("health = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"lamp", "sleepy"}},
		{"?ready=true", []string{"lamp"}},
		{"?ready=false", []string{"sleepy"}},
	}

	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := decode[struct {
				Devices []DeviceView `json:"devices"`
				Count   int          `json:"count"`
			}](t, rec)
			if body.Count != len(tt.want) {
				t.Fatalf("count = %d, want %d", body.Count, len(tt.want))
			}
			for i, id := range tt.want {
				if body.Devices[i].ID != id {
					t.Errorf("devices[%d] = %s, want %s", i, body.Devices[i].ID, id)
				}
			}
		})
	}

	t.Run("invalid ready", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/devices?ready=maybe", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListPendingDevices(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tree.Submit("homie/halfway/$name", []byte("Halfway")); err != nil {
		t.Fatalf("Submit error = %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/devices/pending", "")
	body := decode[struct {
		Devices []string `json:"devices"`
	}](t, rec)
	if len(body.Devices) != 1 || body.Devices[0] != "halfway" {
		t.Errorf("pending = %v, want [halfway]", body.Devices)
	}
}

func TestGetDevice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	d := decode[DeviceView](t, rec)
	if d.Name != "Desk Lamp" || d.State != "ready" || !d.Ready || d.Convention != "3.0.1" {
		t.Errorf("device = %+v", d)
	}
	if len(d.Nodes) != 1 || d.Nodes[0].ID != "light" || d.Nodes[0].Type != "bulb" {
		t.Fatalf("nodes = %+v", d.Nodes)
	}
	props := d.Nodes[0].Properties
	if len(props) != 3 {
		t.Fatalf("properties = %d, want 3", len(props))
	}
	if props[0].ID != "power" || props[0].Value != false || !props[0].Settable {
		t.Errorf("power = %+v", props[0])
	}
	if d.Attributes["name"] != "Desk Lamp" {
		t.Errorf("attributes = %v", d.Attributes)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/devices/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", rec.Code)
	}
}

func TestGetNodeAndProperty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("node status = %d, want 200", rec.Code)
	}
	n := decode[NodeView](t, rec)
	if n.Name != "Light" || len(n.Properties) != 3 {
		t.Errorf("node = %+v", n)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("property status = %d, want 200", rec.Code)
	}
	p := decode[PropertyView](t, rec)
	if p.Value != 4.5 || p.Unit == nil || *p.Unit != "W" || p.Raw == nil || *p.Raw != "4.5" {
		t.Errorf("property = %+v", p)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/mode", "")
	p = decode[PropertyView](t, rec)
	if p.Value != nil || p.Raw != nil || p.Format != "warm,cold" {
		t.Errorf("mode without value = %+v", p)
	}

	for _, path := range []string{
		"/api/v1/devices/lamp/nodes/missing",
		"/api/v1/devices/lamp/nodes/light/properties/missing",
		"/api/v1/devices/missing/nodes/light/properties/power",
	} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestGetProperty_ValueError(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tree.Submit("homie/lamp/light/watts", []byte("lots")); err != nil {
		t.Fatalf("Submit error = %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts", "")
	p := decode[PropertyView](t, rec)
	if p.ValueError == "" || p.Value != nil || p.Raw == nil || *p.Raw != "lots" {
		t.Errorf("property = %+v, want value error", p)
	}
}

func TestNonFiniteFloat(t *testing.T) {
	env := newTestEnv(t)
	for _, raw := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(raw, func(t *testing.T) {
			if err := env.tree.Submit("homie/lamp/light/watts", []byte(raw)); err != nil {
				t.Fatalf("Submit error = %v", err)
			}

			rec := env.do(t, http.MethodGet, "/api/v1/devices", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("list status = %d, want 200", rec.Code)
			}
			body := decode[struct {
				Devices []DeviceView `json:"devices"`
			}](t, rec)
			var watts *PropertyView
			for _, d := range body.Devices {
				if d.ID != "lamp" {
					continue
				}
				for _, n := range d.Nodes {
					for i := range n.Properties {
						if n.Properties[i].ID == "watts" {
							watts = &n.Properties[i]
						}
					}
				}
			}
			if watts == nil {
				t.Fatal("watts missing from device list")
			}
			if watts.Value != nil || watts.ValueError == "" {
				t.Errorf("watts = %+v, want value error", *watts)
			}

			rec = env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("get status = %d, want 200", rec.Code)
			}
			p := decode[PropertyView](t, rec)
			if p.Value != nil || p.ValueError == "" || p.Raw == nil || *p.Raw != raw {
				t.Errorf("property = %+v, want value error with raw %q", p, raw)
			}
		})
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"value": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decode[Error](t, rec)
	if body.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeInternal)
	}
}

func TestSetProperty(t *testing.T) {
	tests := []struct {
		name        string
		property    string
		body        string
		wantStatus  int
		wantPayload string
	}{
		{"boolean", "power", `{"value": true}`, http.StatusAccepted, "true"},
		{"enum", "mode", `{"value": "cold"}`, http.StatusAccepted, "cold"},
		{"enum outside format", "mode", `{"value": "disco"}`, http.StatusBadRequest, ""},
		{"wrong type", "power", `{"value": 3}`, http.StatusBadRequest, ""},
		{"not settable", "watts", `{"value": 1.5}`, http.StatusConflict, ""},
		{"missing value", "power", `{}`, http.StatusBadRequest, ""},
		{"invalid JSON", "power", `{`, http.StatusBadRequest, ""},
		{"unknown property", "missing", `{"value": true}`, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPut, "/api/v1/devices/lamp/nodes/light/properties/"+tt.property, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantPayload == "" {
				if len(env.pub.topics) != 0 {
					t.Errorf("published %v, want nothing", env.pub.topics)
				}
				return
			}
			if len(env.pub.topics) != 1 {
				t.Fatalf("published %d messages, want 1", len(env.pub.topics))
			}
			if want := "homie/lamp/light/" + tt.property + "/set"; env.pub.topics[0] != want {
				t.Errorf("topic = %s, want %s", env.pub.topics[0], want)
			}
			if env.pub.payloads[0] != tt.wantPayload {
				t.Errorf("payload = %s, want %s", env.pub.payloads[0], tt.wantPayload)
			}
			if env.pub.retained[0] {
				t.Error("set message must not be retained")
			}
		})
	}
}

func TestSetProperty_MQTTUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.pub.connected = false

	rec := env.do(t, http.MethodPut, "/api/v1/devices/lamp/nodes/light/properties/power", `{"value": true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disconnected status = %d, want 503", rec.Code)
	}

	env.pub.connected = true
	env.pub.err = errors.New("broker said no")
	rec = env.do(t, http.MethodPut, "/api/v1/devices/lamp/nodes/light/properties/power", `{"value": true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("publish failure status = %d, want 503", rec.Code)
	}
}

func TestPropertyHistory(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	env.history.entries = []history.Entry{
		{ID: 2, DeviceID: "lamp", NodeID: "light", PropertyID: "watts", Value: "5", RecordedAt: base.Add(time.Minute)},
		{ID: 1, DeviceID: "lamp", NodeID: "light", PropertyID: "watts", Value: "4.5", RecordedAt: base},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		History []history.Entry `json:"history"`
		Count   int             `json:"count"`
	}](t, rec)
	if body.Count != 2 || body.History[0].Value != "5" {
		t.Errorf("history = %+v", body)
	}
	if env.history.limit != defaultHistoryLimit {
		t.Errorf("limit = %d, want %d", env.history.limit, defaultHistoryLimit)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts/history?since=2026-10-19T12:00:30Z&limit=10", "")
	body = decode[struct {
		History []history.Entry `json:"history"`
		Count   int             `json:"count"`
	}](t, rec)
	if body.Count != 1 || body.History[0].ID != 2 {
		t.Errorf("filtered history = %+v", body)
	}
	if env.history.limit != 10 {
		t.Errorf("limit = %d, want 10", env.history.limit)
	}

	for _, q := range []string{"?limit=0", "?limit=201", "?limit=x", "?since=yesterday"} {
		rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts/history"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestPropertyHistory_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.srv.history = nil

	rec := env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts/history", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	env.srv.history = &fakeHistory{err: errors.New("locked")}
	rec = env.do(t, http.MethodGet, "/api/v1/devices/lamp/nodes/light/properties/watts/history", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	stats := decode[SystemStats](t, rec)
	if stats.Tree.Devices != 2 || stats.Tree.ReadyDevices != 1 || stats.Tree.Properties != 3 {
		t.Errorf("tree stats = %+v", stats.Tree)
	}
	if !stats.MQTT.Enabled || !stats.MQTT.Connected {
		t.Errorf("mqtt stats = %+v", stats.MQTT)
	}
	if stats.Database == nil || stats.Database.OpenConnections != 1 {
		t.Errorf("database stats = %+v", stats.Database)
	}
	if stats.Runtime.Goroutines == 0 {
		t.Error("runtime goroutines = 0")
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status without metrics handler = %d, want 404", rec.Code)
	}

	env.srv.metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("homiewatch_up 1\n")) //nolint:errcheck // Test handler
	})
	rec = env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "homiewatch_up") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for disallowed origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStartAndClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func dialWS(t *testing.T, env *testEnv) (*websocket.Conn, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go env.srv.Hub().Run(ctx)

	ts := httptest.NewServer(env.srv.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		cancel()
		ts.Close()
		t.Fatalf("websocket dial failed: %v", err)
	}
	return ws, func() {
		ws.Close()
		cancel()
		ts.Close()
	}
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ws, cleanup := dialWS(t, env)
	defer cleanup()
	waitForClients(t, env.srv.Hub(), 1)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"property.updated"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	resp := readWS(t, ws)
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	env.srv.Hub().Broadcast("device.updated", map[string]string{"device": "lamp"})
	env.srv.Hub().Broadcast("property.updated", map[string]string{"device": "lamp", "property": "power"})

	event := readWS(t, ws)
	if event.Type != WSTypeEvent || event.EventType != "property.updated" {
		t.Errorf("event = %+v, want property.updated only", event)
	}
}

func TestWebSocket_Wildcard(t *testing.T) {
	env := newTestEnv(t)
	ws, cleanup := dialWS(t, env)
	defer cleanup()
	waitForClients(t, env.srv.Hub(), 1)

	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "s", Payload: WSSubscribePayload{Channels: []string{WSChannelAll}}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	readWS(t, ws)

	env.srv.Hub().Broadcast("node.discovered", map[string]string{"node": "light"})
	if event := readWS(t, ws); event.EventType != "node.discovered" {
		t.Errorf("event = %+v", event)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	env := newTestEnv(t)
	ws, cleanup := dialWS(t, env)
	defer cleanup()

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: "dance", ID: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError || msg.ID != "d" {
		t.Errorf("unknown type reply = %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "empty", Payload: WSSubscribePayload{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError || msg.ID != "empty" {
		t.Errorf("empty subscribe reply = %+v", msg)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypeUnsubscribe, ID: "u", Payload: WSSubscribePayload{Channels: []string{"x"}}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeResponse || msg.ID != "u" {
		t.Errorf("unsubscribe reply = %+v", msg)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ws, cleanup := dialWS(t, env)
	defer cleanup()
	waitForClients(t, env.srv.Hub(), 1)

	ws.Close()
	waitForClients(t, env.srv.Hub(), 0)
}
