package models

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orgpulse/orgpulse/internal/auth"
	"github.com/orgpulse/orgpulse/internal/config"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open("file:"+ulid.Make().String()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	return db
}

func boolPtr(b bool) *bool { return &b }

func testBootstrap() *config.Bootstrap {
	return &config.Bootstrap{
		Users: []config.BootstrapUser{
			{Username: "alice", Password: "secret", Email: "alice@example.com"},
			{Username: "bob", Password: "hunter2"},
		},
		Projects: []config.BootstrapProject{
			{ID: 1, Name: "alpha", Members: []string{"alice", "bob"}},
			{ID: 2, Name: "beta", Members: []string{"alice"}},
		},
		SSOMethods: []config.BootstrapSSOMethod{
			{Name: "corp", URL: "https://cas.example.com/login?service="},
			{Name: "legacy", URL: "https://old.example.com", Enabled: boolPtr(false)},
		},
	}
}

func TestSyncBootstrap(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, SyncBootstrap(db, testBootstrap(), zerolog.Nop()))

	alice, err := FindUserByUsername(db, "alice")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(alice.PasswordHash, "secret"))
	assert.Len(t, alice.ID, 26)

	projects, err := ProjectsForUser(db, alice.ID)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, uint64(1), projects[0].ID)
	assert.Equal(t, "beta", projects[1].Name)

	bob, err := FindUserByUsername(db, "bob")
	require.NoError(t, err)
	projects, err = ProjectsForUser(db, bob.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	methods, err := EnabledSSOMethods(db)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "corp", methods[0].Name)
}

func TestSyncBootstrap_Resync(t *testing.T) {
	db := openTestDB(t)
	b := testBootstrap()
	require.NoError(t, SyncBootstrap(db, b, zerolog.Nop()))

	alice, err := FindUserByUsername(db, "alice")
	require.NoError(t, err)
	firstHash := alice.PasswordHash

	// Drop bob from alpha, rename beta, drop the corp method
	b.Projects[0].Members = []string{"alice"}
	b.Projects[1].Name = "beta-2"
	b.SSOMethods = b.SSOMethods[1:]
	require.NoError(t, SyncBootstrap(db, b, zerolog.Nop()))

	alice, err = FindUserByUsername(db, "alice")
	require.NoError(t, err)
	assert.Equal(t, firstHash, alice.PasswordHash, "unchanged password keeps its hash")

	bob, err := FindUserByUsername(db, "bob")
	require.NoError(t, err)
	projects, err := ProjectsForUser(db, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)

	var beta Project
	require.NoError(t, db.First(&beta, 2).Error)
	assert.Equal(t, "beta-2", beta.Name)

	methods, err := EnabledSSOMethods(db)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestSyncBootstrap_UnknownMember(t *testing.T) {
	db := openTestDB(t)
	b := &config.Bootstrap{
		Projects: []config.BootstrapProject{{ID: 1, Name: "alpha", Members: []string{"ghost"}}},
	}

	assert.Error(t, SyncBootstrap(db, b, zerolog.Nop()))
}

func TestUpsertSSOUser(t *testing.T) {
	db := openTestDB(t)

	created, err := UpsertSSOUser(db, "carol", "carol@example.com")
	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)

	updated, err := UpsertSSOUser(db, "carol", "carol@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	found, err := FindUserByUsername(db, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol@new.example.com", found.Email)
}

func TestRevokedSessions(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, RevokeSession(db, "01TOKENOLD", "u", now.Add(-time.Hour)))
	require.NoError(t, RevokeSession(db, "01TOKENNEW", "u", now.Add(time.Hour)))
	// Second revocation of the same token is a no-op
	require.NoError(t, RevokeSession(db, "01TOKENNEW", "u", now.Add(time.Hour)))

	revoked, err := IsSessionRevoked(db, "01TOKENNEW")
	require.NoError(t, err)
	assert.True(t, revoked)

	pruned, err := PruneRevokedSessions(db, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	revoked, err = IsSessionRevoked(db, "01TOKENOLD")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t, "https://img", (&User{Avatar: "https://img", Email: "a@x.com"}).AvatarURL())
	assert.Empty(t, (&User{}).AvatarURL())

	a := (&User{Email: " A@X.com "}).AvatarURL()
	b := (&User{Email: "a@x.com"}).AvatarURL()
	assert.Equal(t, a, b)
	assert.Contains(t, a, "https://www.gravatar.com/avatar/")
}
