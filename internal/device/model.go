package device

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusError   = "error"
)

// Device is a controllable endpoint registered by a user. State holds the
// device's last reported attributes (power, level, temperature) as free-form
// JSON.
type Device struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"-"`
	DeviceID   string         `json:"device_id"`
	Name       string         `json:"name"`
	DeviceType string         `json:"device_type"`
	Protocol   string         `json:"protocol"`
	Address    string         `json:"address"`
	Room       string         `json:"room"`
	Status     string         `json:"status"`
	State      map[string]any `json:"state"`
	LastSeen   *time.Time     `json:"last_seen,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateInput carries the client-supplied fields for a new device.
type CreateInput struct {
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	Protocol   string `json:"protocol"`
	Address    string `json:"address"`
	Room       string `json:"room"`
}

// UpdateInput patches an existing device; nil pointers leave fields alone.
type UpdateInput struct {
	Name     *string `json:"name"`
	Protocol *string `json:"protocol"`
	Address  *string `json:"address"`
	Room     *string `json:"room"`
	Status   *string `json:"status"`
}
