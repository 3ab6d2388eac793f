// Package telemetry turns raw gateway payloads into canonical messages.
//
// Three pure stages live here:
//
//   - Decode: bytes to a generic JSON object (json.Number preserved)
//   - Normalizer.Normalize: generic object to GatewayMessage, reconciling
//     every firmware variant (timestamp representations, field aliases,
//     compact or structured actuator state)
//   - ParseActuatorStatus: the compact "Pin:27,Velocidad:50%,..." string
//
// None of them touch storage or keep state between messages. Failures are
// reported as *DecodeError, *ValidationError or *FormatError and are meant
// to be inspected with errors.As.
//
// # Timestamps
//
// Gateways have shipped three timestamp shapes over time: an integer
// (milliseconds since boot on early firmware, epoch milliseconds on later
// builds), an ISO-8601 string, and a strict "DD/MM/YYYY HH:MM:SS" local
// wall-clock string. Each resolves to an absolute instant tagged with its
// TimestampKind. A timestamp never rejects a message: when it cannot be
// interpreted the ingestion time is substituted and the kind says so.
package telemetry
