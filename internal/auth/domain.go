package auth

import "time"

// MinPasswordLength is the shortest password accepted on signup, reset and change.
const MinPasswordLength = 8

// MaxDisplayNameLength bounds the only user-editable profile field.
const MaxDisplayNameLength = 100

// Account is the persisted identity record. PasswordHash and the pending
// secrets never leave this package and its repositories.
type Account struct {
	ID                     string
	Email                  string
	PasswordHash           string
	DisplayName            string
	EmailVerified          bool
	VerificationCode       string
	VerificationCodeExpiry time.Time
	ResetTokenDigest       string
	ResetTokenExpiry       time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasActiveCode reports whether a verification code is outstanding at now.
func (a Account) HasActiveCode(now time.Time) bool {
	return a.VerificationCode != "" && now.Before(a.VerificationCodeExpiry)
}

// Profile is the secret-free projection of an Account.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileOf projects an account onto its public profile.
func ProfileOf(a Account) Profile {
	return Profile{
		ID:            a.ID,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ProfilePatch lists the fields a user may change. Nil means unchanged.
type ProfilePatch struct {
	DisplayName *string `json:"displayName"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.DisplayName == nil
}

// Session binds a token digest to an account until ExpiresAt.
type Session struct {
	TokenDigest string
	UserID      string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// ExpiredAt reports whether the session is no longer valid at now.
func (s Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
