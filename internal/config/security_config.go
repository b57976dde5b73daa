// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic    SecurityLevel = iota // No authentication
	SecurityRefresh                        // Refresh token required
	SecurityAccess                         // Access token required
	SecuritySignature                      // Provider HMAC signature, no user token
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Auth - Public
	"auth.signup": SecurityPublic,
	"auth.login":  SecurityPublic,
	"health":      SecurityPublic,

	// Auth - Refresh Protected
	"auth.refresh": SecurityRefresh,

	// Provider webhooks
	"webhooks.charge":     SecuritySignature,
	"webhooks.identity":   SecuritySignature,
	"webhooks.payout":     SecuritySignature,
	"arbitration.resolve": SecuritySignature,

	// Me - Access Protected
	"me.get":                   SecurityAccess,
	"me.intent":                SecurityAccess,
	"me.deactivate":            SecurityAccess,
	"me.verification":          SecurityAccess,
	"me.identity.submit":       SecurityAccess,
	"me.payout.submit":         SecurityAccess,
	"me.payment_method.attach": SecurityAccess,
	"me.payment_method.detach": SecurityAccess,
	"me.notifications":         SecurityAccess,
	"me.notifications.read":    SecurityAccess,

	// Items - Access Protected
	"items.create":       SecurityAccess,
	"items.mine":         SecurityAccess,
	"items.get":          SecurityAccess,
	"items.instant":      SecurityAccess,
	"items.availability": SecurityAccess,

	// Bookings - Access Protected
	"bookings.create":       SecurityAccess,
	"bookings.list":         SecurityAccess,
	"bookings.get":          SecurityAccess,
	"bookings.decision":     SecurityAccess,
	"bookings.payment":      SecurityAccess,
	"bookings.pickup":       SecurityAccess,
	"bookings.return":       SecurityAccess,
	"bookings.cancel":       SecurityAccess,
	"bookings.disputes":     SecurityAccess,
	"bookings.dispute_open": SecurityAccess,
	"bookings.reports":      SecurityAccess,
	"bookings.conversation": SecurityAccess,

	// Relations - Access Protected
	"relations.set":  SecurityAccess,
	"relations.list": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
