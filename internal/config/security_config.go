// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityUser                         // Identity provider ID token required
	SecurityService                      // Service token required (cron, internal callers)
	SecurityUserOrService                // Either of the above; service callers act without a user identity
)

// EndpointSecurityConfig maps named HTTP routes to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"health":  SecurityPublic,
	"metrics": SecurityPublic,

	// Reservations - User
	"CreateReservation":     SecurityUser,
	"GetReservation":        SecurityUser,
	"TransitionReservation": SecurityUserOrService,
	"CancelReservation":     SecurityUserOrService,

	// Quotes - User
	"SendQuote":   SecurityUser,
	"AcceptQuote": SecurityUser,
	"RejectQuote": SecurityUser,

	// Payment methods - User
	"SavePaymentMethod": SecurityUser,

	// Scheduler - Service
	"AutoCancelPending": SecurityService,
}

// GetSecurityLevel returns the required security level for a route.
// Unknown routes require the strictest level.
func GetSecurityLevel(route string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[route]; ok {
		return level
	}
	return SecurityService
}
