package device

import "time"

// Device is a registered gateway. Matches the devices table in
// migrations/20260601_120000_initial_schema.sql.
type Device struct {
	// Identity
	ID        string `json:"id"`
	GatewayID string `json:"gateway_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`

	// Roles. Every gateway seen so far is a combined sensor and extractor
	// node; the flags exist so split nodes can be told apart later.
	IsGateway   bool `json:"is_gateway"`
	HasSensor   bool `json:"has_sensor"`
	HasActuator bool `json:"has_actuator"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGateway builds the device record for a first-seen gateway.
func NewGateway(gatewayID string, now time.Time) *Device {
	now = now.UTC()
	return &Device{
		ID:          DeriveID(gatewayID),
		GatewayID:   gatewayID,
		Name:        gatewayID,
		Slug:        GenerateSlug(gatewayID),
		IsGateway:   true,
		HasSensor:   true,
		HasActuator: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
