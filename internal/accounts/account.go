package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// OwnershipType restricts which owner field is authoritative for an account.
type OwnershipType string

const (
	OwnershipTeam OwnershipType = "team"
	OwnershipUser OwnershipType = "user"
)

// Meta is a typed key-value bag attached to an account. Every stored map
// carries a schema version so shape changes stay explicit.
type Meta map[string]string

const (
	MetaSchemaVersionKey = "schema_version"
	MetaSchemaVersion    = "1"
)

// NewMeta returns a versioned meta map seeded with the given entries.
func NewMeta(entries map[string]string) Meta {
	m := Meta{MetaSchemaVersionKey: MetaSchemaVersion}
	for k, v := range entries {
		m[k] = v
	}
	return m
}

// Account is one WhatsApp phone-number registration. One number = one
// account. Several accounts may share a business id and api token when they
// belong to the same Meta business account.
type Account struct {
	ID            uuid.UUID
	PhoneNumber   string
	PhoneNumberID string
	Name          string
	BusinessID    string

	// APIToken may be empty; sends then fall back to the process-wide token.
	APIToken string

	// Webhook credentials, generated at creation and unique per account.
	WebhookToken       string
	WebhookVerifyToken string

	TeamID          string
	CreatedByUserID string
	UserID          string
	OwnershipType   OwnershipType

	SenderKind string
	SenderID   string

	IsDefault bool
	Meta      Meta

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// HasUserAccess reports whether a user may act on this account: creators
// always can, private owners can, and team members can for team accounts.
func (a *Account) HasUserAccess(userID, teamID string) bool {
	if userID != "" && a.CreatedByUserID == userID {
		return true
	}
	if a.OwnershipType == OwnershipUser && userID != "" && a.UserID == userID {
		return true
	}
	if a.OwnershipType == OwnershipTeam && teamID != "" && a.TeamID == teamID {
		return true
	}
	return false
}

// ResolveToken returns the account token, falling back to the shared token.
func (a *Account) ResolveToken(fallback string) string {
	if a.APIToken != "" {
		return a.APIToken
	}
	return fallback
}

// NewWebhookToken generates a random webhook credential.
func NewWebhookToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
