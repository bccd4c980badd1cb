package device

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Payload field names.
const (
	FieldDeviceName = "device_name"

	// fieldDeviceNameLegacy is accepted when device_name is absent.
	fieldDeviceNameLegacy = "deviceName"

	FieldTime   = "time"
	FieldSource = "source"
)

// ParseEvent decodes one broker message.
//
// The payload must be a JSON object with a non-empty string device_name
// (deviceName is accepted as a fallback). The name is kept byte for byte,
// surrounding spaces included. The status is read from the key equal to
// the lower-cased device name; when that key is missing or null
// the status is empty. Non-string statuses are formatted as text.
func ParseEvent(topic string, payload []byte, receivedAt time.Time) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if fields == nil {
		return Event{}, fmt.Errorf("%w: payload is null", ErrMalformedPayload)
	}

	name, ok := deviceName(fields)
	if !ok {
		return Event{}, ErrMissingDeviceName
	}

	return Event{
		DeviceName: name,
		Status:     statusText(fields[StatusKey(name)]),
		ReceivedAt: receivedAt,
		Topic:      topic,
		Raw:        payload,
	}, nil
}

func deviceName(fields map[string]any) (string, bool) {
	for _, key := range []string{FieldDeviceName, fieldDeviceNameLegacy} {
		if raw, present := fields[key]; present {
			name, isString := raw.(string)
			return name, isString && name != ""
		}
	}
	return "", false
}

func statusText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

// Validator applies the optional strict checks: device names must match a
// pattern and statuses must come from an allowed set (case-insensitive).
type Validator struct {
	pattern  *regexp.Regexp
	statuses map[string]struct{}
}

// NewValidator compiles pattern. An empty pattern accepts any name; an
// empty status list accepts any status.
func NewValidator(pattern string, statuses []string) (*Validator, error) {
	v := &Validator{statuses: make(map[string]struct{}, len(statuses))}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling device pattern: %w", err)
		}
		v.pattern = re
	}
	for _, s := range statuses {
		v.statuses[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return v, nil
}

// Validate returns ErrInvalidDeviceName or ErrInvalidStatus. A nil
// Validator accepts everything.
func (v *Validator) Validate(e Event) error {
	if v == nil {
		return nil
	}
	if v.pattern != nil && !v.pattern.MatchString(e.DeviceName) {
		return fmt.Errorf("%w: %q does not match %s", ErrInvalidDeviceName, e.DeviceName, v.pattern)
	}
	if len(v.statuses) > 0 {
		if _, ok := v.statuses[strings.ToLower(e.Status)]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
		}
	}
	return nil
}

// SnapshotFrame renders a stored state as the message sent to a subscriber
// that has just joined. It carries the same keys live payloads use, plus
// source=database so clients can tell replayed state from live traffic.
// An empty status is reported as "off".
func SnapshotFrame(s State, now time.Time) []byte {
	status := strings.ToLower(s.Status)
	if status == "" {
		status = "off"
	}

	frame := map[string]string{
		FieldDeviceName:         s.DeviceName,
		StatusKey(s.DeviceName): status,
		FieldTime:               now.UTC().Format(time.RFC3339),
		FieldSource:             "database",
	}
	b, _ := json.Marshal(frame) //nolint:errcheck // map of strings cannot fail
	return b
}
