package influxdb

import (
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PropertyMeasurement is the measurement name for property values.
const PropertyMeasurement = "homie_property"

// Sample is one typed property value.
type Sample struct {
	DeviceID   string
	NodeID     string
	PropertyID string
	Unit       string
	// Value is the coerced value: int64, float64, bool or string.
	Value any
	Time  time.Time
}

// WriteProperty queues s as a homie_property point and reports whether it was
// written. Only numeric and boolean values are written; booleans become 1 or
// 0. Strings, enums and colors are skipped.
func (c *Client) WriteProperty(s Sample) bool {
	if !c.IsConnected() {
		return false
	}
	point, ok := propertyPoint(s)
	if !ok {
		return false
	}
	c.writeAPI.WritePoint(point)
	return true
}

// propertyPoint builds the point for s, tagged by device, node, property and
// unit when present.
func propertyPoint(s Sample) (*write.Point, bool) {
	value, ok := numeric(s.Value)
	if !ok {
		return nil, false
	}

	tags := map[string]string{
		"device":   s.DeviceID,
		"node":     s.NodeID,
		"property": s.PropertyID,
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(PropertyMeasurement, tags, map[string]interface{}{"value": value}, ts), true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
