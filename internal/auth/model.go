package auth

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
)

// User is a registered account. The failed-login counter and lockout expiry
// live on the row itself; AccountGuard owns their transitions.
type User struct {
	ID                  string
	Email               string
	Username            string
	PasswordHash        string
	FullName            *string
	Phone               *string
	Role                Role
	IsActive            bool
	IsVerified          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session is one issued refresh-token lineage. Rotation never mutates the
// token in place: the old row is revoked and a new row inserted.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ClientIP     string
	UserAgent    string
	IsActive     bool
	RevokedAt    *time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenPayload is the decoded content of a verified token. Required claims
// are fixed fields; caller-supplied claims land in Extra.
type TokenPayload struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Type      string
	TokenID   string
	Extra     map[string]any
}
