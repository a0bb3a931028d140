package tenant

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BaSui01/hyperinfer/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Team{}, &User{}, &APIKey{}, &ModelAlias{}, &Quota{}, &UsageLog{}))
	return New(db)
}

func TestRepository_TeamCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 10_000)
	require.NoError(t, err)
	assert.Equal(t, "acme", team.Name)
	assert.Equal(t, int64(10_000), team.BudgetCents)

	fetched, err := repo.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, fetched.ID)
}

func TestRepository_GetTeam_InvalidUUID(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTeam(context.Background(), "not-a-uuid")
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBInvalidUUID, dbErr.Code)
}

func TestRepository_GetTeam_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTeam(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBNotFound, dbErr.Code)
}

func TestRepository_UserCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)

	user, err := repo.CreateUser(ctx, team.ID, "alice@acme.test", "admin")
	require.NoError(t, err)
	assert.Equal(t, "alice@acme.test", user.Email)

	fetched, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, fetched.Email)
}

func TestRepository_CreateUser_DuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, team.ID, "dup@acme.test", "admin")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, team.ID, "dup@acme.test", "member")
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBUniqueViolation, dbErr.Code)
}

func TestRepository_APIKeyLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)
	user, err := repo.CreateUser(ctx, team.ID, "bob@acme.test", "member")
	require.NoError(t, err)

	key, err := repo.CreateAPIKey(ctx, "hash-of-secret", user.ID, team.ID, "ci key")
	require.NoError(t, err)
	assert.True(t, key.IsActive)

	byHash, err := repo.GetAPIKeyByHash(ctx, "hash-of-secret")
	require.NoError(t, err)
	assert.Equal(t, key.ID, byHash.ID)

	require.NoError(t, repo.RevokeAPIKey(ctx, key.ID))

	_, err = repo.GetAPIKeyByHash(ctx, "hash-of-secret")
	require.Error(t, err, "revoked keys must not resolve by hash")
}

func TestRepository_RevokeAPIKey_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.RevokeAPIKey(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBNotFound, dbErr.Code)
}

func TestRepository_ModelAliasCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)

	alias, err := repo.CreateModelAlias(ctx, team.ID, "fast", "gpt-4o-mini", "openai")
	require.NoError(t, err)
	assert.Equal(t, "fast", alias.Alias)

	aliases, err := repo.ListModelAliases(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
}

func TestRepository_ListAllModelAliases_SpansTeams(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	teamA, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)
	teamB, err := repo.CreateTeam(ctx, "globex", 0)
	require.NoError(t, err)

	_, err = repo.CreateModelAlias(ctx, teamA.ID, "fast", "gpt-4o-mini", "openai")
	require.NoError(t, err)
	_, err = repo.CreateModelAlias(ctx, teamB.ID, "smart", "claude-haiku", "anthropic")
	require.NoError(t, err)

	all, err := repo.ListAllModelAliases(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_CreateModelAlias_DuplicateWithinTeam(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)

	_, err = repo.CreateModelAlias(ctx, team.ID, "fast", "gpt-4o-mini", "openai")
	require.NoError(t, err)

	_, err = repo.CreateModelAlias(ctx, team.ID, "fast", "claude-haiku", "anthropic")
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBUniqueViolation, dbErr.Code)
}

func TestRepository_QuotaCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)

	quota, err := repo.CreateQuota(ctx, team.ID, 60, 100_000, 5_000)
	require.NoError(t, err)
	assert.Equal(t, 60, quota.RPMLimit)

	require.NoError(t, repo.UpdateQuota(ctx, team.ID, 120, 200_000, 10_000))

	fetched, err := repo.GetQuota(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, fetched.RPMLimit)
	assert.Equal(t, 200_000, fetched.TPMLimit)
}

func TestRepository_ListAllQuotas_SpansTeams(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	teamA, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)
	teamB, err := repo.CreateTeam(ctx, "globex", 0)
	require.NoError(t, err)

	_, err = repo.CreateQuota(ctx, teamA.ID, 60, 100_000, 5_000)
	require.NoError(t, err)
	_, err = repo.CreateQuota(ctx, teamB.ID, 30, 50_000, 1_000)
	require.NoError(t, err)

	all, err := repo.ListAllQuotas(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_UpdateQuota_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UpdateQuota(context.Background(), "00000000-0000-0000-0000-000000000000", 1, 1, 1)
	require.Error(t, err)
	var dbErr *model.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, model.ErrDBNotFound, dbErr.Code)
}

func TestRepository_RecordUsageRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)
	user, err := repo.CreateUser(ctx, team.ID, "carol@acme.test", "member")
	require.NoError(t, err)
	key, err := repo.CreateAPIKey(ctx, "hash-2", user.ID, team.ID, "prod key")
	require.NoError(t, err)

	record := &model.UsageRecord{
		Key:            key.ID,
		Model:          "gpt-4",
		InputTokens:    100,
		OutputTokens:   50,
		ResponseTimeMs: 250,
		TimestampMs:    1700000000000,
	}
	require.NoError(t, repo.RecordUsageRecord(ctx, record))

	logs, err := repo.ListUsage(ctx, team.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "gpt-4", logs[0].Model)
	assert.Equal(t, 100, logs[0].InputTokens)
	assert.Equal(t, key.ID, logs[0].APIKeyID)
}

func TestRepository_RecordUsageRecord_UnknownKeyReturnsError(t *testing.T) {
	repo := newTestRepo(t)
	record := &model.UsageRecord{
		Key:   "00000000-0000-0000-0000-000000000000",
		Model: "gpt-4",
	}
	// An unresolvable key must surface an error rather than silently
	// succeed — the caller (internal/telemetry's consumer) decides what
	// to do with it.
	err := repo.RecordUsageRecord(context.Background(), record)
	require.Error(t, err)
}

func TestRepository_ListUsage_RespectsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	team, err := repo.CreateTeam(ctx, "acme", 0)
	require.NoError(t, err)
	user, err := repo.CreateUser(ctx, team.ID, "dave@acme.test", "member")
	require.NoError(t, err)
	key, err := repo.CreateAPIKey(ctx, "hash-3", user.ID, team.ID, "key")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordUsage(ctx, team.ID, key.ID, "gpt-4", 1, 1, 1))
	}

	logs, err := repo.ListUsage(ctx, team.ID, 3)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
