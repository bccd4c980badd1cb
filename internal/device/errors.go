package device

import "errors"

// Use errors.Is() to check for these:
//
//	if errors.Is(err, device.ErrMissingDeviceName) {
//	    // drop the message
//	}
var (
	// ErrMalformedPayload is returned when a message is not a JSON object.
	ErrMalformedPayload = errors.New("device: malformed payload")

	// ErrMissingDeviceName is returned when the device identifier is absent,
	// empty or not a string.
	ErrMissingDeviceName = errors.New("device: missing device name")

	// ErrInvalidDeviceName is returned by strict validation when the name
	// does not match the configured pattern.
	ErrInvalidDeviceName = errors.New("device: invalid device name")

	// ErrInvalidStatus is returned by strict validation for statuses outside
	// the allowed set.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrDeviceNotFound is returned by Store.Get for unknown devices.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrStoreUnavailable wraps every backend failure.
	ErrStoreUnavailable = errors.New("device: store unavailable")
)
