package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// Repository is the control plane's gateway onto the relational tenant
// store: teams, users, API keys, model aliases, quotas and usage logs —
// one method per entity, uuid validated up front, gorm.ErrRecordNotFound
// and unique-constraint violations mapped onto this package's own
// db-error taxonomy.
type Repository struct {
	db *gorm.DB
}

// New wraps an open *gorm.DB (obtained via internal/dbpool.Open).
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func parseUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.DBError(model.ErrDBInvalidUUID, "invalid uuid: "+id, err)
	}
	return nil
}

func mapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DBError(model.ErrDBNotFound, "record not found", err)
	}
	if isUniqueViolation(err) {
		return model.DBError(model.ErrDBUniqueViolation, "unique constraint violation", err)
	}
	return model.DBError(model.ErrDBError, "database operation failed", err)
}

// isUniqueViolation matches the driver-specific phrasing of a unique
// constraint violation across postgres, mysql and sqlite, since gorm does
// not normalize this into a typed error across dialects.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique_violation") ||
		strings.Contains(msg, "23505") // postgres SQLSTATE for unique_violation
}

// --- Team ---

func (r *Repository) GetTeam(ctx context.Context, id string) (*Team, error) {
	if err := parseUUID(id); err != nil {
		return nil, err
	}
	var team Team
	if err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &team, nil
}

func (r *Repository) CreateTeam(ctx context.Context, name string, budgetCents int64) (*Team, error) {
	team := &Team{ID: uuid.NewString(), Name: name, BudgetCents: budgetCents}
	if err := r.db.WithContext(ctx).Create(team).Error; err != nil {
		return nil, mapGormError(err)
	}
	return team, nil
}

// --- User ---

func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	if err := parseUUID(id); err != nil {
		return nil, err
	}
	var user User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, teamID, email, role string) (*User, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	user := &User{ID: uuid.NewString(), TeamID: teamID, Email: email, Role: role}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, mapGormError(err)
	}
	return user, nil
}

// --- APIKey ---

func (r *Repository) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	if err := parseUUID(id); err != nil {
		return nil, err
	}
	var key APIKey
	if err := r.db.WithContext(ctx).First(&key, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &key, nil
}

// GetAPIKeyByHash looks up an active, unexpired key by its hash — the
// lookup path the data plane exercises on every request.
func (r *Repository) GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	var key APIKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", keyHash, true).
		First(&key).Error
	if err != nil {
		return nil, mapGormError(err)
	}
	return &key, nil
}

func (r *Repository) CreateAPIKey(ctx context.Context, keyHash, userID, teamID, name string) (*APIKey, error) {
	if err := parseUUID(userID); err != nil {
		return nil, err
	}
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	key := &APIKey{
		ID:       uuid.NewString(),
		KeyHash:  keyHash,
		UserID:   userID,
		TeamID:   teamID,
		Name:     name,
		IsActive: true,
	}
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, mapGormError(err)
	}
	return key, nil
}

// RevokeAPIKey flips is_active to false; the key row stays for audit.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	if err := parseUUID(id); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.DBError(model.ErrDBNotFound, "api key not found", nil)
	}
	return nil
}

// --- ModelAlias ---

func (r *Repository) GetModelAlias(ctx context.Context, id string) (*ModelAlias, error) {
	if err := parseUUID(id); err != nil {
		return nil, err
	}
	var alias ModelAlias
	if err := r.db.WithContext(ctx).First(&alias, "id = ?", id).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &alias, nil
}

// ListModelAliases returns every alias configured for a team, the shape
// internal/configsync publishes into model.Config.ModelAliases.
func (r *Repository) ListModelAliases(ctx context.Context, teamID string) ([]ModelAlias, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	var aliases []ModelAlias
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Find(&aliases).Error; err != nil {
		return nil, mapGormError(err)
	}
	return aliases, nil
}

// ListAllModelAliases returns every alias across every team. Used by the
// control plane's periodic reconciliation job to rebuild the global
// model.Config snapshot it publishes to the shared store.
func (r *Repository) ListAllModelAliases(ctx context.Context) ([]ModelAlias, error) {
	var aliases []ModelAlias
	if err := r.db.WithContext(ctx).Find(&aliases).Error; err != nil {
		return nil, mapGormError(err)
	}
	return aliases, nil
}

func (r *Repository) CreateModelAlias(ctx context.Context, teamID, alias, targetModel, provider string) (*ModelAlias, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	record := &ModelAlias{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Alias:       alias,
		TargetModel: targetModel,
		Provider:    provider,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, mapGormError(err)
	}
	return record, nil
}

// --- Quota ---

func (r *Repository) GetQuota(ctx context.Context, teamID string) (*Quota, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	var quota Quota
	if err := r.db.WithContext(ctx).First(&quota, "team_id = ?", teamID).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &quota, nil
}

func (r *Repository) CreateQuota(ctx context.Context, teamID string, rpmLimit, tpmLimit int, budgetCents int64) (*Quota, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	quota := &Quota{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		RPMLimit:    rpmLimit,
		TPMLimit:    tpmLimit,
		BudgetCents: budgetCents,
	}
	if err := r.db.WithContext(ctx).Create(quota).Error; err != nil {
		return nil, mapGormError(err)
	}
	return quota, nil
}

// ListAllQuotas returns every team's quota row. Used by the control
// plane's periodic reconciliation job to rebuild the global model.Config
// snapshot it publishes to the shared store.
func (r *Repository) ListAllQuotas(ctx context.Context) ([]Quota, error) {
	var quotas []Quota
	if err := r.db.WithContext(ctx).Find(&quotas).Error; err != nil {
		return nil, mapGormError(err)
	}
	return quotas, nil
}

func (r *Repository) UpdateQuota(ctx context.Context, teamID string, rpmLimit, tpmLimit int, budgetCents int64) error {
	if err := parseUUID(teamID); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&Quota{}).Where("team_id = ?", teamID).Updates(map[string]any{
		"rpm_limit":    rpmLimit,
		"tpm_limit":    tpmLimit,
		"budget_cents": budgetCents,
	})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return model.DBError(model.ErrDBNotFound, "quota not found", nil)
	}
	return nil
}

// --- UsageLog ---

// RecordUsage persists one completed request. This is what
// internal/telemetry's consumer calls per drained stream entry.
func (r *Repository) RecordUsage(ctx context.Context, teamID, apiKeyID, modelName string, inputTokens, outputTokens int, responseTimeMs int64) error {
	if err := parseUUID(teamID); err != nil {
		return err
	}
	if err := parseUUID(apiKeyID); err != nil {
		return err
	}
	log := &UsageLog{
		ID:             uuid.NewString(),
		TeamID:         teamID,
		APIKeyID:       apiKeyID,
		Model:          modelName,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		ResponseTimeMs: responseTimeMs,
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return mapGormError(err)
	}
	return nil
}

// RecordUsageRecord persists a drained telemetry entry. The
// rate-limit key is caller-defined and only "typically equal" to the
// tenant API key id — here it is treated as exactly that: the
// api_keys.id whose team owns the usage. A key that does not resolve to a
// known API key returns the lookup error and nothing is written; the
// telemetry consumer then leaves that entry unacknowledged instead of
// stopping its loop.
func (r *Repository) RecordUsageRecord(ctx context.Context, record *model.UsageRecord) error {
	apiKey, err := r.GetAPIKey(ctx, record.Key)
	if err != nil {
		return err
	}
	return r.RecordUsage(ctx, apiKey.TeamID, apiKey.ID, record.Model,
		int(record.InputTokens), int(record.OutputTokens), int64(record.ResponseTimeMs))
}

// ListUsage returns a team's usage log entries, most recent first, capped
// at limit.
func (r *Repository) ListUsage(ctx context.Context, teamID string, limit int) ([]UsageLog, error) {
	if err := parseUUID(teamID); err != nil {
		return nil, err
	}
	var logs []UsageLog
	q := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("recorded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, mapGormError(err)
	}
	return logs, nil
}
