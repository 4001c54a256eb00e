package dto

// CreateShareRequest is the creation payload. Resource is either a
// path-like string or a descriptor object with a "type" field.
type CreateShareRequest struct {
	Resource       interface{}            `json:"resource" binding:"required"`
	ExpiresInHours int                    `json:"expires_in_hours"`
	MaxClicks      int                    `json:"max_clicks"`
	Password       string                 `json:"password"`
	Metadata       map[string]interface{} `json:"metadata"`
	Burn           bool                   `json:"burn_after_reading"`
}

// ExtendShareRequest extends a link's expiry by a number of hours. A nil
// Hours means the key was absent and the default of one hour applies.
type ExtendShareRequest struct {
	Hours *int `json:"hours"`
}

// PruneRequest optionally restricts revoked pruning to records older than
// the given number of days.
type PruneRequest struct {
	RevokedDays int `json:"revoked_days"`
}
