package auth

import "time"

// AnyCity is the city claim granted to global-access users. A zero city
// claim grants nothing.
const AnyCity int64 = -1

type Credential struct {
	Username string
	Password string
}

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	CityID       int64
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is the name embedded in issued tokens.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Claims is the identity carried by an access token. It is built once at
// issuance and never modified afterwards.
type Claims struct {
	SubjectID int64  `json:"subject_id"`
	Name      string `json:"name"`
	CityID    int64  `json:"city_id"`
}

func ClaimsFromUser(u User) Claims {
	return Claims{
		SubjectID: u.ID,
		Name:      u.DisplayName(),
		CityID:    u.CityID,
	}
}

type Token struct {
	Value     string
	Claims    Claims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

type LoginAttempt struct {
	Username       string
	FailedAttempts int
	LockedUntil    *time.Time
}

type CleanupResult struct {
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
}
