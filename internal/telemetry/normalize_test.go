package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basePayload = `{
	"gatewayId": "Nodo Central 01",
	"timestamp": TIMESTAMP,
	"sensor": {"ppm": 412.5, "ratio": 0.87, "raw": 655, "estado": "ALERTA", "umbral": 300},
	"control": {"automatico": true, "encendido": true, "transicion": false, "velocidad": 75},
	"estadoVentilador": "Pin:27,Velocidad:75%,Objetivo:80%,Encendido:SI,Transicion:NO,PWM:191",
	"firmware": "1.4.2"
}`

func decodeFixture(t *testing.T, payload string) map[string]any {
	t.Helper()
	obj, err := Decode([]byte(payload), "gas/datos")
	require.NoError(t, err)
	return obj
}

func withTimestamp(ts string) string {
	return strings.Replace(basePayload, "TIMESTAMP", ts, 1)
}

func TestNormalize_AllWireFormats(t *testing.T) {
	received := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := NewNormalizer(siteZone)

	tests := []struct {
		name     string
		ts       string
		wantKind TimestampKind
	}{
		{"milliseconds since boot", `987654`, TimestampBootMillis},
		{"iso string", `"2025-06-08T16:30:44+02:00"`, TimestampISO8601},
		{"wall clock string", `"08/06/2025 16:30:44"`, TimestampWallClock},
		{"null timestamp", `null`, TimestampIngest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := n.Normalize(decodeFixture(t, withTimestamp(tt.ts)), received)
			require.NoError(t, err)

			assert.Equal(t, "Nodo Central 01", msg.GatewayID)
			assert.Equal(t, tt.wantKind, msg.Timestamp.Kind)
			assert.False(t, msg.Timestamp.Time.IsZero())
			assert.Equal(t, received, msg.ReceivedAt)

			assert.Equal(t, SensorPayload{PPM: 412.5, Ratio: 0.87, Raw: 655, Status: "ALERTA", Threshold: 300}, msg.Sensor)
			assert.Equal(t, ControlPayload{Automatic: true, On: true, Transition: false, Speed: 75}, msg.Control)
			assert.Equal(t, ActuatorStatus{Pin: 27, Speed: 75, Target: 80, On: "SI", Transition: "NO", PWM: 191}, msg.Actuator)
		})
	}
}

func TestNormalize_MissingTimestamp(t *testing.T) {
	received := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := decodeFixture(t, withTimestamp(`0`))
	delete(raw, "timestamp")

	msg, err := NewNormalizer(siteZone).Normalize(raw, received)
	require.NoError(t, err)
	assert.Equal(t, TimestampIngest, msg.Timestamp.Kind)
	assert.True(t, msg.Timestamp.Time.Equal(received))
	assert.Equal(t, siteZone, msg.Timestamp.Time.Location())
}

func TestNormalize_UnparseableTimestampFallsBack(t *testing.T) {
	received := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := NewNormalizer(siteZone).Normalize(decodeFixture(t, withTimestamp(`"2025/06/08 16:30:44"`)), received)

	require.NoError(t, err)
	assert.Equal(t, TimestampFallback, msg.Timestamp.Kind)
	assert.Equal(t, "2025/06/08 16:30:44", msg.Timestamp.Raw)
	assert.True(t, msg.Timestamp.Time.Equal(received))
}

func TestNormalize_ZeroReceivedAtUsesNow(t *testing.T) {
	before := time.Now()
	msg, err := NewNormalizer(nil).Normalize(decodeFixture(t, withTimestamp(`null`)), time.Time{})
	require.NoError(t, err)
	assert.False(t, msg.ReceivedAt.Before(before))
	assert.False(t, msg.Timestamp.Time.IsZero())
}

func TestNormalize_Aliases(t *testing.T) {
	payload := `{
		"gateway_id": "gw-7",
		"sensor": {"ppm": "12.5", "ratio": 1, "raw": "300", "estado": "NORMAL", "umbral": 300.0},
		"control": {"automatico": 1, "encendido": "false", "transicion": 0, "velocidad": 0.0},
		"estado_ventilador": "Pin:27,Velocidad:0%,Objetivo:0%,Encendido:NO,Transicion:NO,PWM:0"
	}`
	msg, err := NewNormalizer(siteZone).Normalize(decodeFixture(t, payload), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "gw-7", msg.GatewayID)
	assert.Equal(t, 12.5, msg.Sensor.PPM)
	assert.Equal(t, 300, msg.Sensor.Raw)
	assert.True(t, msg.Control.Automatic)
	assert.False(t, msg.Control.On)
	assert.Equal(t, 0, msg.Control.Speed)
	assert.Equal(t, "NO", msg.Actuator.On)

	spaced := `{"Gateway ID": "gw-8",
		"sensor": {"ppm": 1, "ratio": 1, "raw": 1, "estado": "NORMAL", "umbral": 1},
		"control": {"automatico": true, "encendido": true, "transicion": true, "velocidad": 1},
		"estadoVentilador": "Pin:1,Velocidad:1%,Objetivo:1%,Encendido:SI,Transicion:SI,PWM:3"}`
	msg, err = NewNormalizer(siteZone).Normalize(decodeFixture(t, spaced), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "gw-8", msg.GatewayID)
}

func TestNormalize_StructuredActuator(t *testing.T) {
	payload := `{
		"gatewayId": "ESP32_CENTRAL_01",
		"timestamp": "08/06/2025 16:30:44",
		"sensor": {"ppm": 612.4, "ratio": 1.92, "raw": 811, "estado": "ALERTA", "umbral": 400},
		"control": {"automatico": true, "manual_activo": false, "encendido": true, "transicion": true, "velocidad": 180},
		"actuador": {"pin": 25, "velocidad": 180, "objetivo": 200, "pwm_max": 255, "encendido": true, "transicion": true}
	}`
	msg, err := NewNormalizer(siteZone).Normalize(decodeFixture(t, payload), time.Now())
	require.NoError(t, err)

	pwmMax := 255
	assert.Equal(t, ActuatorStatus{Pin: 25, Speed: 180, Target: 200, On: "SI", Transition: "SI", PWM: 180, PWMMax: &pwmMax}, msg.Actuator)
	require.NotNil(t, msg.Control.ManualActive)
	assert.False(t, *msg.Control.ManualActive)
	assert.Equal(t, TimestampWallClock, msg.Timestamp.Kind)
}

func TestNormalize_CompactStringWinsOverObject(t *testing.T) {
	raw := decodeFixture(t, withTimestamp(`null`))
	raw["actuador"] = map[string]any{"pin": "bogus"}

	msg, err := NewNormalizer(siteZone).Normalize(raw, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 27, msg.Actuator.Pin)
}

func TestNormalize_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(raw map[string]any)
		wantField string
	}{
		{"missing gatewayId", func(r map[string]any) { delete(r, "gatewayId") }, "gatewayId"},
		{"empty gatewayId", func(r map[string]any) { r["gatewayId"] = "  " }, "gatewayId"},
		{"numeric gatewayId", func(r map[string]any) { r["gatewayId"] = 42.0 }, "gatewayId"},
		{"missing sensor", func(r map[string]any) { delete(r, "sensor") }, "sensor"},
		{"sensor not object", func(r map[string]any) { r["sensor"] = "x" }, "sensor"},
		{"missing ppm", func(r map[string]any) { delete(r["sensor"].(map[string]any), "ppm") }, "sensor.ppm"},
		{"ppm not numeric", func(r map[string]any) { r["sensor"].(map[string]any)["ppm"] = "lots" }, "sensor.ppm"},
		{"raw not integral", func(r map[string]any) { r["sensor"].(map[string]any)["raw"] = "1.5" }, "sensor.raw"},
		{"estado not string", func(r map[string]any) { r["sensor"].(map[string]any)["estado"] = true }, "sensor.estado"},
		{"missing control", func(r map[string]any) { delete(r, "control") }, "control"},
		{"automatico not bool", func(r map[string]any) { r["control"].(map[string]any)["automatico"] = "maybe" }, "control.automatico"},
		{"velocidad missing", func(r map[string]any) { delete(r["control"].(map[string]any), "velocidad") }, "control.velocidad"},
		{"manual_activo not bool", func(r map[string]any) { r["control"].(map[string]any)["manual_activo"] = "x" }, "control.manual_activo"},
		{"missing actuator", func(r map[string]any) { delete(r, "estadoVentilador") }, "estadoVentilador"},
		{"actuator string not string", func(r map[string]any) { r["estadoVentilador"] = 5.0 }, "estadoVentilador"},
		{"actuator object not object", func(r map[string]any) { delete(r, "estadoVentilador"); r["actuador"] = "x" }, "actuador"},
		{
			"actuator object missing pin",
			func(r map[string]any) {
				delete(r, "estadoVentilador")
				r["actuador"] = map[string]any{"velocidad": 1.0, "objetivo": 1.0, "encendido": true, "transicion": false}
			},
			"actuador.pin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decodeFixture(t, withTimestamp(`null`))
			tt.mutate(raw)

			_, err := NewNormalizer(siteZone).Normalize(raw, time.Now())

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestNormalize_ActuatorFormatErrorPropagates(t *testing.T) {
	raw := decodeFixture(t, withTimestamp(`null`))
	raw["estadoVentilador"] = "Velocidad:10%,Objetivo:20%,Encendido:SI,Transicion:NO,PWM:5"

	_, err := NewNormalizer(siteZone).Normalize(raw, time.Now())

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "estadoVentilador", ve.Field)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "pin", fe.Field)
	assert.Contains(t, err.Error(), "missing field: pin")
}

func TestNormalize_NoRangeChecks(t *testing.T) {
	raw := decodeFixture(t, withTimestamp(`null`))
	raw["sensor"].(map[string]any)["ppm"] = "-3"
	raw["sensor"].(map[string]any)["raw"] = "5000"
	raw["control"].(map[string]any)["velocidad"] = "250"

	msg, err := NewNormalizer(siteZone).Normalize(raw, time.Now())
	require.NoError(t, err)
	assert.Equal(t, -3.0, msg.Sensor.PPM)
	assert.Equal(t, 5000, msg.Sensor.Raw)
	assert.Equal(t, 250, msg.Control.Speed)
}
