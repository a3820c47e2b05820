package ratelimit

import "time"

// Policy describes one fixed-window budget.
type Policy struct {
	Name   string
	Window time.Duration
	Max    int

	// SkipSuccessfulRequests refunds requests that end with a status < 400.
	SkipSuccessfulRequests bool
	// SkipFailedRequests refunds requests that end with a status >= 400.
	SkipFailedRequests bool
}

var (
	AuthPolicy = Policy{
		Name:   "auth",
		Window: 15 * time.Minute,
		Max:    5,
	}
	APIPolicy = Policy{
		Name:   "api",
		Window: 15 * time.Minute,
		Max:    100,
	}
	ProfileUpdatePolicy = Policy{
		Name:   "profile_update",
		Window: time.Hour,
		Max:    10,
	}
	PasswordResetPolicy = Policy{
		Name:   "password_reset",
		Window: time.Hour,
		Max:    3,
	}
)

// ShouldRefund reports whether a request that finished with status should
// not count against the budget.
func (p Policy) ShouldRefund(status int) bool {
	if status >= 400 {
		return p.SkipFailedRequests
	}
	return p.SkipSuccessfulRequests
}
