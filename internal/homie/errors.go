package homie

import "errors"

// Domain errors for the homie package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, homie.ErrDeviceNotFound) {
//	    // device unknown or still pending
//	}
var (
	// ErrMalformedTopic is returned when a topic is outside the prefix or does
	// not have enough segments for the level it addresses.
	ErrMalformedTopic = errors.New("homie: malformed topic")

	// ErrInvalidPayload is returned when a payload is not valid UTF-8.
	ErrInvalidPayload = errors.New("homie: invalid payload")

	// ErrInvalidValue is returned when a raw value cannot be converted to the
	// property's declared datatype, or a value to publish does not fit it.
	ErrInvalidValue = errors.New("homie: invalid value")

	// ErrDeviceNotFound is returned when a device does not exist or is still pending.
	ErrDeviceNotFound = errors.New("homie: device not found")

	// ErrNodeNotFound is returned when a node does not exist or is still pending.
	ErrNodeNotFound = errors.New("homie: node not found")

	// ErrPropertyNotFound is returned when a property does not exist or is still pending.
	ErrPropertyNotFound = errors.New("homie: property not found")

	// ErrNotSettable is returned when publishing to a property without $settable=true.
	ErrNotSettable = errors.New("homie: property not settable")
)
