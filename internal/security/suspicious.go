package security

import (
	"net/http"
	"regexp"
)

const (
	minUserAgentLength = 10
	// MaxDeclaredContentLength is the largest body a client may announce.
	MaxDeclaredContentLength = 10 << 20
)

var automatedUserAgentRe = regexp.MustCompile(`(?i)bot|crawler|spider|scraper|curl|wget|python|java|go-http-client|httpie|postman`)

const (
	ReasonMissingUserAgent   = "missing or short user agent"
	ReasonAutomatedUserAgent = "automated client user agent"
	ReasonDuplicateForwarded = "multiple x-forwarded-for headers"
	ReasonDuplicateRealIP    = "multiple x-real-ip headers"
	ReasonOversizedPayload   = "declared payload too large"
)

// Report is the outcome of Detect. It never blocks a request by itself.
type Report struct {
	Suspicious bool     `json:"isSuspicious"`
	Reasons    []string `json:"reasons"`
}

// Detect applies every heuristic independently and collects all reasons.
func Detect(r *http.Request) Report {
	reasons := make([]string, 0, 4)

	ua := r.UserAgent()
	if len(ua) < minUserAgentLength {
		reasons = append(reasons, ReasonMissingUserAgent)
	}
	if ua != "" && automatedUserAgentRe.MatchString(ua) {
		reasons = append(reasons, ReasonAutomatedUserAgent)
	}
	if len(r.Header.Values("X-Forwarded-For")) > 1 {
		reasons = append(reasons, ReasonDuplicateForwarded)
	}
	if len(r.Header.Values("X-Real-Ip")) > 1 {
		reasons = append(reasons, ReasonDuplicateRealIP)
	}
	if r.ContentLength > MaxDeclaredContentLength {
		reasons = append(reasons, ReasonOversizedPayload)
	}

	return Report{Suspicious: len(reasons) > 0, Reasons: reasons}
}
