package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasUserAccess(t *testing.T) {
	tests := []struct {
		name   string
		acct   Account
		userID string
		teamID string
		want   bool
	}{
		{
			name:   "creator always has access",
			acct:   Account{CreatedByUserID: "u1", OwnershipType: OwnershipUser, UserID: "u2"},
			userID: "u1",
			want:   true,
		},
		{
			name:   "private owner has access",
			acct:   Account{OwnershipType: OwnershipUser, UserID: "u1"},
			userID: "u1",
			want:   true,
		},
		{
			name:   "private account blocks other users",
			acct:   Account{OwnershipType: OwnershipUser, UserID: "u1", TeamID: "t1"},
			userID: "u2",
			teamID: "t1",
			want:   false,
		},
		{
			name:   "team member has access to team account",
			acct:   Account{OwnershipType: OwnershipTeam, TeamID: "t1"},
			userID: "u2",
			teamID: "t1",
			want:   true,
		},
		{
			name:   "wrong team has no access",
			acct:   Account{OwnershipType: OwnershipTeam, TeamID: "t1"},
			userID: "u2",
			teamID: "t2",
			want:   false,
		},
		{
			name: "empty identity has no access",
			acct: Account{OwnershipType: OwnershipTeam, TeamID: ""},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.acct.HasUserAccess(tt.userID, tt.teamID))
		})
	}
}

func TestResolveToken(t *testing.T) {
	acct := Account{APIToken: "own-token"}
	assert.Equal(t, "own-token", acct.ResolveToken("shared"))

	acct.APIToken = ""
	assert.Equal(t, "shared", acct.ResolveToken("shared"))
}

func TestNewWebhookToken(t *testing.T) {
	a := NewWebhookToken()
	b := NewWebhookToken()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNewMetaCarriesSchemaVersion(t *testing.T) {
	m := NewMeta(map[string]string{"source": "oauth"})
	assert.Equal(t, MetaSchemaVersion, m[MetaSchemaVersionKey])
	assert.Equal(t, "oauth", m["source"])

	empty := NewMeta(nil)
	assert.Equal(t, MetaSchemaVersion, empty[MetaSchemaVersionKey])
}
