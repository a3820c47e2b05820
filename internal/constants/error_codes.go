package constants

const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeOriginNotAllowed   = "ORIGIN_NOT_ALLOWED"
	ErrCodeSuspiciousRequest  = "SUSPICIOUS_REQUEST"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

const (
	// IDRandomBytes is the number of random bytes behind every prefixed row ID.
	IDRandomBytes = 12

	MaxRequestBodyBytes = 1 << 20

	DisplayNameMinLength = 2
	DisplayNameMaxLength = 50
	BioMaxLength         = 500
)
