package mqtt

import (
	"fmt"
	"strings"
)

// SystemStatusTopic carries the bridge's retained presence message and its
// Last Will.
const SystemStatusTopic = "lightbridge/system/status"

// ValidateFilter checks a subscription filter against the MQTT wildcard
// rules: "#" only as the final level, "+" only as a whole level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty filter", ErrInvalidTopic)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: '#' must be the last level in %q", ErrInvalidTopic, filter)
			}
		case level == "+":
		case strings.ContainsAny(level, "#+"):
			return fmt.Errorf("%w: wildcard inside level %q", ErrInvalidTopic, level)
		}
	}
	return nil
}

// validatePublishTopic rejects empty topics and topics containing wildcards.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "#+") {
		return fmt.Errorf("%w: wildcards are not allowed when publishing", ErrInvalidTopic)
	}
	return nil
}
