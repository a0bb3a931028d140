// Package tenant is the control plane's relational store: teams, users,
// API keys, model aliases, quotas and durable usage logs, following the
// gorm model conventions used elsewhere in this module.
package tenant

import "time"

// Team is the billing/quota boundary: a customer org with its own budget,
// users, API keys, model aliases and quota.
type Team struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:200;not null" json:"name"`
	BudgetCents int64     `gorm:"column:budget_cents;not null;default:0" json:"budget_cents"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Team) TableName() string { return "teams" }

// User belongs to exactly one Team.
type User struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	TeamID    string    `gorm:"column:team_id;not null;index" json:"team_id"`
	Email     string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"email"`
	Role      string    `gorm:"column:role;size:50;not null" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// APIKey authenticates data-plane requests. Only KeyHash is persisted; the
// plaintext key is returned to the caller once, at creation time, and never
// again.
type APIKey struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	KeyHash   string     `gorm:"column:key_hash;size:255;not null;uniqueIndex" json:"-"`
	UserID    string     `gorm:"column:user_id;not null;index" json:"user_id"`
	TeamID    string     `gorm:"column:team_id;not null;index" json:"team_id"`
	Name      string     `gorm:"column:name;size:200" json:"name,omitempty"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (APIKey) TableName() string { return "api_keys" }

// ModelAlias maps a team-scoped friendly name to a provider/target model
// pair.
type ModelAlias struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	TeamID      string    `gorm:"column:team_id;not null;index:idx_model_aliases_team_alias,unique" json:"team_id"`
	Alias       string    `gorm:"column:alias;size:200;not null;index:idx_model_aliases_team_alias,unique" json:"alias"`
	TargetModel string    `gorm:"column:target_model;size:200;not null" json:"target_model"`
	Provider    string    `gorm:"column:provider;size:50;not null" json:"provider"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ModelAlias) TableName() string { return "model_aliases" }

// Quota holds the team's rate-limit ceilings and budget. The control plane's
// reconciliation loop publishes them into model.Config.Quotas keyed by team
// id; no data-plane code reads them, and internal/client admits every request
// with internal/ratelimit's default limits.
type Quota struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	TeamID      string    `gorm:"column:team_id;not null;uniqueIndex" json:"team_id"`
	RPMLimit    int       `gorm:"column:rpm_limit;not null" json:"rpm_limit"`
	TPMLimit    int       `gorm:"column:tpm_limit;not null" json:"tpm_limit"`
	BudgetCents int64     `gorm:"column:budget_cents;not null;default:0" json:"budget_cents"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Quota) TableName() string { return "quotas" }

// UsageLog is the durable, queryable record of a single completed request —
// distinct from the ephemeral Redis stream entry internal/telemetry
// produces: the consumer drains the stream and writes one UsageLog row per
// entry.
type UsageLog struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	TeamID         string    `gorm:"column:team_id;not null;index" json:"team_id"`
	APIKeyID       string    `gorm:"column:api_key_id;not null;index" json:"api_key_id"`
	Model          string    `gorm:"column:model;size:200;not null" json:"model"`
	InputTokens    int       `gorm:"column:input_tokens;not null" json:"input_tokens"`
	OutputTokens   int       `gorm:"column:output_tokens;not null" json:"output_tokens"`
	ResponseTimeMs int64     `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	RecordedAt     time.Time `gorm:"column:recorded_at;autoCreateTime;index" json:"recorded_at"`
}

func (UsageLog) TableName() string { return "usage_logs" }
