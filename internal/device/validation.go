package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxSlugLength = 50

// gatewayNamespace scopes name-based device IDs.
var gatewayNamespace = uuid.MustParse("6f1c3b7e-2a58-4d0e-9f43-8c1d2e5a7b90")

// DeriveID returns the stable device ID for a gateway identifier.
func DeriveID(gatewayID string) string {
	return uuid.NewSHA1(gatewayNamespace, []byte(gatewayID)).String()
}

// Validate checks a device before it is written.
func (d *Device) Validate() error {
	if strings.TrimSpace(d.GatewayID) == "" {
		return fmt.Errorf("%w: gateway id is required", ErrInvalidDevice)
	}
	if d.ID != DeriveID(d.GatewayID) {
		return fmt.Errorf("%w: id does not match gateway id %q", ErrInvalidDevice, d.GatewayID)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidDevice)
	}
	return nil
}

// GenerateSlug creates a URL-safe slug from a gateway name.
// Gateways named only with symbols get "gateway".
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)

	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}

	if slug == "" {
		return "gateway"
	}
	return slug
}
