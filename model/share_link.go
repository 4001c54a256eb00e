package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"ShareGate/internal/resource"
)

// ResourceField stores a resource variant as a JSON column.
type ResourceField struct {
	resource.Resource
}

// Value serializes the resource to its wire JSON form.
func (f ResourceField) Value() (driver.Value, error) {
	data, err := resource.MarshalWire(f.Resource)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan restores the resource from its wire JSON form.
func (f *ResourceField) Scan(value interface{}) error {
	if value == nil {
		f.Resource = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported resource column type")
	}
	parsed, err := resource.UnmarshalWire(data)
	if err != nil {
		return err
	}
	f.Resource = parsed
	return nil
}

// MarshalJSON exposes the wire form in API payloads.
func (f ResourceField) MarshalJSON() ([]byte, error) {
	return resource.MarshalWire(f.Resource)
}

// JSONMap stores an open key-value map as a JSON column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported metadata column type")
	}
	return json.Unmarshal(data, m)
}

// StringList reads a metadata entry as a list of strings, tolerating both
// []string and JSON-decoded []interface{} forms.
func (m JSONMap) StringList(key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Flag reads a metadata entry as a boolean flag.
func (m JSONMap) Flag(key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v == "1" || v == "true"
	default:
		return false
	}
}

type ShareLink struct {
	ID string `gorm:"primaryKey;size:36"`

	Resource ResourceField `gorm:"column:resource;type:json"`

	Token string `gorm:"column:token;size:64;uniqueIndex;not null"`

	PasswordHash string `gorm:"column:password_hash;size:100"`

	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	MaxClicks *int       `gorm:"column:max_clicks"`

	ClickCount    int        `gorm:"column:click_count;not null;default:0"`
	FirstAccessAt *time.Time `gorm:"column:first_access_at"`
	LastAccessAt  *time.Time `gorm:"column:last_access_at"`
	LastIP        string     `gorm:"column:last_ip;size:45"`

	RevokedAt *time.Time `gorm:"column:revoked_at;index"`

	Metadata JSONMap `gorm:"column:metadata;type:json"`

	CreatedBy string `gorm:"column:created_by;size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the database table name.
func (ShareLink) TableName() string {
	return "share_link"
}

// IsRevoked reports whether the link has been permanently invalidated.
func (s *ShareLink) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired reports whether the link's expiry has passed.
func (s *ShareLink) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// PublicPayload returns the public-safe representation of the record.
func (s *ShareLink) PublicPayload() map[string]interface{} {
	var res interface{}
	if s.Resource.Resource != nil {
		res = s.Resource.Wire()
	}
	return map[string]interface{}{
		"token":    s.Token,
		"resource": res,
		"metadata": s.Metadata,
		"clicks":   s.ClickCount,
	}
}
