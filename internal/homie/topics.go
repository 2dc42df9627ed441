package homie

import "strings"

// DefaultPrefix is the base topic Homie devices publish under.
const DefaultPrefix = "homie"

// Reserved attribute keys. Attributes are stored and delivered with the
// leading "$" sentinel stripped.
const (
	AttrHomie      = "$homie"
	AttrName       = "$name"
	AttrState      = "$state"
	AttrNodes      = "$nodes"
	AttrType       = "$type"
	AttrProperties = "$properties"
	AttrDatatype   = "$datatype"
	AttrUnit       = "$unit"
	AttrSettable   = "$settable"
	AttrFormat     = "$format"
)

// Device lifecycle states published in $state.
const (
	StateInit         = "init"
	StateReady        = "ready"
	StateDisconnected = "disconnected"
	StateSleeping     = "sleeping"
	StateLost         = "lost"
	StateAlert        = "alert"
)

const (
	sentinel  = "$"
	separator = "/"
	setSuffix = "set"
)

// Required attributes per level, in replay order.
var (
	deviceRequired = []string{AttrHomie, AttrName, AttrState, AttrNodes}
	nodeRequired   = []string{AttrName, AttrType, AttrProperties}
	propRequired   = []string{AttrName, AttrDatatype}
)

// SubscriptionTopic returns the wildcard topic covering every device under prefix.
func SubscriptionTopic(prefix string) string {
	return prefix + separator + "#"
}

// SetTopic returns the command topic for a settable property.
//
// Example: SetTopic("homie", "lamp", "light", "power") → "homie/lamp/light/power/set"
func SetTopic(prefix, deviceID, nodeID, propertyID string) string {
	return strings.Join([]string{prefix, deviceID, nodeID, propertyID, setSuffix}, separator)
}

func isAttribute(key string) bool {
	return strings.HasPrefix(key, sentinel)
}

// attributeKey accepts a name with or without the sentinel.
func attributeKey(name string) string {
	if isAttribute(name) {
		return name
	}
	return sentinel + name
}

func publicAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[strings.TrimPrefix(k, sentinel)] = v
	}
	return out
}

// parseIDList splits a $nodes or $properties payload. Empty entries are skipped.
func parseIDList(payload string) []string {
	var ids []string
	for _, id := range strings.Split(payload, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
