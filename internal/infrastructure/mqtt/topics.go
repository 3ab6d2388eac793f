package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes used by the service itself. Gateway telemetry topics are
// configured, not derived from these.
const (
	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "airguard/system"

	// DefaultTelemetryTopic is the topic the gateway firmware publishes on.
	DefaultTelemetryTopic = "gas/datos"
)

// Topics provides builders for the topics AirGuard publishes.
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: airguard/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// GatewayTelemetry returns the per-gateway telemetry topic used by firmware
// that publishes under its own identifier.
//
// Example: gas/datos/nodo-central-01
func (Topics) GatewayTelemetry(gatewayID string) string {
	return fmt.Sprintf("%s/%s", DefaultTelemetryTopic, gatewayID)
}

// AllGatewayTelemetry matches the shared telemetry topic and every
// per-gateway topic below it.
//
// Example: gas/datos/#
func (Topics) AllGatewayTelemetry() string {
	return DefaultTelemetryTopic + "/#"
}

// ValidateFilter checks a subscription filter against the MQTT wildcard
// rules: "#" only as the whole last level, "+" only as a whole level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q has '#' before the last level", ErrInvalidTopic, filter)
			}
		case level == "+":
		case strings.ContainsAny(level, "#+"):
			return fmt.Errorf("%w: %q mixes a wildcard into a level", ErrInvalidTopic, filter)
		}
	}

	return nil
}
