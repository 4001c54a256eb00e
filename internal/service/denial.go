package service

import "fmt"

// Denial is the structured client-visible outcome of a failed pipeline
// check. It never wraps internal errors.
type Denial struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func denyGone() *Denial {
	return &Denial{
		Status: 410,
		Code:   "sharelink.invalid",
		Title:  "Share link is no longer valid",
		Detail: "The link is expired or revoked.",
	}
}

func denyLimitReached() *Denial {
	return &Denial{
		Status: 429,
		Code:   "sharelink.limit_reached",
		Title:  "Usage limit reached",
		Detail: "This link has reached its maximum number of clicks.",
	}
}

func denyIP() *Denial {
	return &Denial{
		Status: 403,
		Code:   "sharelink.ip_denied",
		Title:  "Access denied",
		Detail: "Your address is not allowed to use this link.",
	}
}

func denySignatureRequired() *Denial {
	return &Denial{
		Status: 403,
		Code:   "sharelink.signature_required",
		Title:  "Signature required",
		Detail: "This link must be accessed with a valid signature.",
	}
}

func denySignatureInvalid() *Denial {
	return &Denial{
		Status: 403,
		Code:   "sharelink.signature_invalid",
		Title:  "Invalid or expired signature",
		Detail: "The signature is invalid or expired.",
	}
}

func denyRateLimited(retryAfterSec int) *Denial {
	return &Denial{
		Status: 429,
		Code:   "sharelink.rate_limited",
		Title:  "Too many requests",
		Detail: fmt.Sprintf("Try again in %d seconds.", retryAfterSec),
	}
}

func denyPasswordThrottled(retryAfterSec int) *Denial {
	return &Denial{
		Status: 429,
		Code:   "password.throttled",
		Title:  "Too many password attempts",
		Detail: fmt.Sprintf("Try again in %d seconds.", retryAfterSec),
	}
}

func denyPasswordInvalid() *Denial {
	return &Denial{
		Status: 401,
		Code:   "password.invalid",
		Title:  "Password required or invalid",
		Detail: "Provide a valid password to access this resource.",
	}
}
