package telemetry

import (
	"strconv"
	"strings"
)

// Keys of the compact actuator status string, lower-cased.
const (
	keyPin        = "pin"
	keySpeed      = "velocidad"
	keyTarget     = "objetivo"
	keyOn         = "encendido"
	keyTransition = "transicion"
	keyPWM        = "pwm"
)

var requiredActuatorKeys = []string{keyPin, keySpeed, keyTarget, keyOn, keyTransition, keyPWM}

// ParseActuatorStatus decodes the compact actuator string, for example
//
//	Pin:27,Velocidad:50%,Objetivo:50%,Encendido:SI,Transicion:NO,PWM:127
//
// Tokens are split on ',' and then on the first ':'. Keys are matched
// case-insensitively; a single trailing '%' is allowed on velocidad and
// objetivo. encendido and transicion are kept verbatim. Unknown keys are
// ignored and a repeated key keeps its last value.
func ParseActuatorStatus(raw string) (ActuatorStatus, error) {
	fields := make(map[string]string, len(requiredActuatorKeys))
	for _, token := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(token, ":")
		if !ok {
			return ActuatorStatus{}, &FormatError{Field: strings.ToLower(strings.TrimSpace(token)), Raw: raw}
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	for _, key := range requiredActuatorKeys {
		if _, ok := fields[key]; !ok {
			return ActuatorStatus{}, &FormatError{Field: key, Missing: true}
		}
	}

	var status ActuatorStatus
	ints := []struct {
		key     string
		dst     *int
		percent bool
	}{
		{keyPin, &status.Pin, false},
		{keySpeed, &status.Speed, true},
		{keyTarget, &status.Target, true},
		{keyPWM, &status.PWM, false},
	}
	for _, f := range ints {
		value := fields[f.key]
		if f.percent {
			value = strings.TrimSpace(strings.TrimSuffix(value, "%"))
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return ActuatorStatus{}, &FormatError{Field: f.key, Raw: raw}
		}
		*f.dst = n
	}

	status.On = fields[keyOn]
	status.Transition = fields[keyTransition]
	return status, nil
}
