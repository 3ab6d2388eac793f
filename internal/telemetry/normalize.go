package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Wire field names, including aliases used by older firmware and the
// HTTP prototype.
var (
	gatewayIDKeys      = []string{"gatewayId", "gateway_id", "Gateway ID"}
	actuatorStringKeys = []string{"estadoVentilador", "estado_ventilador"}
)

const (
	fieldTimestamp      = "timestamp"
	fieldSensor         = "sensor"
	fieldControl        = "control"
	fieldActuatorObject = "actuador"
	fieldActuatorString = "estadoVentilador"
)

// Normalizer maps decoded payloads onto GatewayMessage.
// It holds no per-message state and is safe for concurrent use.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a Normalizer that reads zone-less timestamps in loc.
// A nil loc means time.Local.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Location returns the site timezone used for zone-less timestamps.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize validates raw and builds the canonical message. receivedAt is
// the ingestion instant; it becomes the message time whenever the payload
// timestamp is absent or unusable. Unknown fields are ignored.
func (n *Normalizer) Normalize(raw map[string]any, receivedAt time.Time) (GatewayMessage, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	msg := GatewayMessage{ReceivedAt: receivedAt}

	gatewayID, err := requireString(raw, "gatewayId", gatewayIDKeys...)
	if err != nil {
		return GatewayMessage{}, err
	}
	msg.GatewayID = gatewayID

	sensor, err := requireObject(raw, fieldSensor)
	if err != nil {
		return GatewayMessage{}, err
	}
	if msg.Sensor, err = sensorPayload(sensor); err != nil {
		return GatewayMessage{}, err
	}

	control, err := requireObject(raw, fieldControl)
	if err != nil {
		return GatewayMessage{}, err
	}
	if msg.Control, err = controlPayload(control); err != nil {
		return GatewayMessage{}, err
	}

	if msg.Actuator, err = actuatorStatus(raw); err != nil {
		return GatewayMessage{}, err
	}

	ts, _ := lookup(raw, fieldTimestamp)
	msg.Timestamp = ResolveTimestamp(ts, receivedAt, n.loc)

	return msg, nil
}

func sensorPayload(obj map[string]any) (SensorPayload, error) {
	var p SensorPayload
	var err error
	if p.PPM, err = requireFloat(obj, "sensor.ppm", "ppm"); err != nil {
		return p, err
	}
	if p.Ratio, err = requireFloat(obj, "sensor.ratio", "ratio"); err != nil {
		return p, err
	}
	if p.Raw, err = requireInt(obj, "sensor.raw", "raw"); err != nil {
		return p, err
	}
	if p.Status, err = requireString(obj, "sensor.estado", "estado"); err != nil {
		return p, err
	}
	if p.Threshold, err = requireFloat(obj, "sensor.umbral", "umbral"); err != nil {
		return p, err
	}
	return p, nil
}

func controlPayload(obj map[string]any) (ControlPayload, error) {
	var p ControlPayload
	var err error
	if p.Automatic, err = requireBool(obj, "control.automatico", "automatico"); err != nil {
		return p, err
	}
	if p.On, err = requireBool(obj, "control.encendido", "encendido"); err != nil {
		return p, err
	}
	if p.Transition, err = requireBool(obj, "control.transicion", "transicion"); err != nil {
		return p, err
	}
	if p.Speed, err = requireInt(obj, "control.velocidad", "velocidad"); err != nil {
		return p, err
	}
	if v, ok := lookup(obj, "manual_activo"); ok {
		b, err := asBool(v)
		if err != nil {
			return p, &ValidationError{Field: "control.manual_activo", Reason: err.Error()}
		}
		p.ManualActive = &b
	}
	return p, nil
}

// actuatorStatus prefers the compact status string and falls back to the
// structured "actuador" object published by current firmware.
func actuatorStatus(raw map[string]any) (ActuatorStatus, error) {
	if v, ok := lookup(raw, actuatorStringKeys...); ok {
		s, isString := v.(string)
		if !isString {
			return ActuatorStatus{}, &ValidationError{Field: fieldActuatorString, Reason: "must be a string"}
		}
		status, err := ParseActuatorStatus(s)
		if err != nil {
			return ActuatorStatus{}, &ValidationError{Field: fieldActuatorString, Err: err}
		}
		return status, nil
	}

	v, ok := lookup(raw, fieldActuatorObject)
	if !ok {
		return ActuatorStatus{}, &ValidationError{Field: fieldActuatorString, Reason: "is required"}
	}
	obj, isObject := v.(map[string]any)
	if !isObject {
		return ActuatorStatus{}, &ValidationError{Field: fieldActuatorObject, Reason: "must be an object"}
	}
	return actuatorFromObject(obj)
}

func actuatorFromObject(obj map[string]any) (ActuatorStatus, error) {
	var s ActuatorStatus
	var err error
	if s.Pin, err = requireInt(obj, "actuador.pin", "pin"); err != nil {
		return s, err
	}
	if s.Speed, err = requireInt(obj, "actuador.velocidad", "velocidad"); err != nil {
		return s, err
	}
	if s.Target, err = requireInt(obj, "actuador.objetivo", "objetivo"); err != nil {
		return s, err
	}
	if s.On, err = requireToken(obj, "actuador.encendido", "encendido"); err != nil {
		return s, err
	}
	if s.Transition, err = requireToken(obj, "actuador.transicion", "transicion"); err != nil {
		return s, err
	}

	// The structured form reports the live duty cycle as velocidad and
	// only sends pwm on some builds.
	s.PWM = s.Speed
	if _, ok := lookup(obj, "pwm"); ok {
		if s.PWM, err = requireInt(obj, "actuador.pwm", "pwm"); err != nil {
			return s, err
		}
	}
	if _, ok := lookup(obj, "pwm_max"); ok {
		pwmMax, err := requireInt(obj, "actuador.pwm_max", "pwm_max")
		if err != nil {
			return s, err
		}
		s.PWMMax = &pwmMax
	}
	return s, nil
}

// lookup returns the first non-null value among keys.
func lookup(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func requireObject(obj map[string]any, field string) (map[string]any, error) {
	v, ok := lookup(obj, field)
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "is required"}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "must be an object"}
	}
	return m, nil
}

func requireString(obj map[string]any, field string, keys ...string) (string, error) {
	v, ok := lookup(obj, keys...)
	if !ok {
		return "", &ValidationError{Field: field, Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Reason: "must be a string"}
	}
	if s = strings.TrimSpace(s); s == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return s, nil
}

func requireFloat(obj map[string]any, field string, keys ...string) (float64, error) {
	v, ok := lookup(obj, keys...)
	if !ok {
		return 0, &ValidationError{Field: field, Reason: "is required"}
	}
	f, err := asFloat(v)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: err.Error()}
	}
	return f, nil
}

func requireInt(obj map[string]any, field string, keys ...string) (int, error) {
	v, ok := lookup(obj, keys...)
	if !ok {
		return 0, &ValidationError{Field: field, Reason: "is required"}
	}
	n, err := asInt(v)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: err.Error()}
	}
	return n, nil
}

func requireBool(obj map[string]any, field string, keys ...string) (bool, error) {
	v, ok := lookup(obj, keys...)
	if !ok {
		return false, &ValidationError{Field: field, Reason: "is required"}
	}
	b, err := asBool(v)
	if err != nil {
		return false, &ValidationError{Field: field, Reason: err.Error()}
	}
	return b, nil
}

// requireToken reads an on/off flag of the structured actuator object as
// the SI/NO token the compact form carries. Strings pass through verbatim.
func requireToken(obj map[string]any, field string, keys ...string) (string, error) {
	v, ok := lookup(obj, keys...)
	if !ok {
		return "", &ValidationError{Field: field, Reason: "is required"}
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s), nil
	}
	b, err := asBool(v)
	if err != nil {
		return "", &ValidationError{Field: field, Reason: err.Error()}
	}
	if b {
		return "SI", nil
	}
	return "NO", nil
}

func asFloat(v any) (float64, error) {
	var f float64
	var err error
	switch val := v.(type) {
	case json.Number:
		f, err = val.Float64()
	case float64:
		f = val
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a number, got %v", v)
	}
	return f, nil
}

func asInt(v any) (int, error) {
	var raw string
	switch val := v.(type) {
	case json.Number:
		raw = val.String()
	case float64:
		raw = strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		raw = strings.TrimSpace(val)
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
	n, ok := integralValue(raw)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("must be an integer, got %v", v)
	}
	return int(n), nil
}

func asBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case json.Number:
		switch val.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("must be a boolean, got %v", v)
}
