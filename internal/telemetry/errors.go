package telemetry

import "fmt"

// DecodeError reports a payload that is not a JSON object.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("telemetry: decoding payload from %q: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a required field that is missing or mistyped.
// Field is a dotted path such as "sensor.ppm".
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telemetry: invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("telemetry: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// FormatError reports a malformed actuator status string.
type FormatError struct {
	// Field is the actuator key concerned, lower-cased.
	Field string

	// Raw is the offending input. Empty for missing fields.
	Raw string

	Missing bool
}

func (e *FormatError) Error() string {
	if e.Missing {
		return "missing field: " + e.Field
	}
	return "invalid format: " + e.Raw
}
