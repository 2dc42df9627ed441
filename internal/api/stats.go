package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/homiewatch/internal/homie"
)

// SystemStats is the response of GET /api/v1/stats.
type SystemStats struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeStats   `json:"runtime"`
	WebSocket     WSStats        `json:"websocket"`
	MQTT          MQTTStats      `json:"mqtt"`
	Tree          homie.Stats    `json:"tree"`
	Database      *DatabaseStats `json:"database,omitempty"`
}

// RuntimeStats contains Go runtime statistics.
type RuntimeStats struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSStats contains WebSocket hub statistics.
type WSStats struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTStats contains MQTT client statistics.
type MQTTStats struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DatabaseStats contains history database pool statistics.
type DatabaseStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

const bytesPerMB = 1024 * 1024

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := SystemStats{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(mem.TotalAlloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSStats{ConnectedClients: s.hub.ClientCount()},
		Tree:      s.tree.Stats(),
	}

	if s.mqtt != nil {
		stats.MQTT = MQTTStats{Enabled: true, Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		db := s.db.Stats()
		stats.Database = &DatabaseStats{
			OpenConnections: db.OpenConnections,
			InUse:           db.InUse,
			Idle:            db.Idle,
			WaitCount:       db.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, stats)
}
