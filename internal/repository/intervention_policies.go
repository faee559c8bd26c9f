package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spendwell-biometrics/internal/models"
)

// InterventionPoliciesRepository 干预策略仓库（对应 intervention_policies 表）
//
// 注意：stress_threshold 和 spending_amount 不做符号校验，
// 负数阈值原样入库（保留的已知缺口）。
type InterventionPoliciesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInterventionPoliciesRepository 创建干预策略仓库
func NewInterventionPoliciesRepository(db *sql.DB, logger *zap.Logger) *InterventionPoliciesRepository {
	return &InterventionPoliciesRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePolicy 写入一条策略
func (r *InterventionPoliciesRepository) CreatePolicy(ctx context.Context, userID string, policy *models.InterventionPolicy) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if policy.ID == "" {
		return fmt.Errorf("policy_id is required")
	}

	query := `
		INSERT INTO intervention_policies (
			policy_id,
			user_id,
			enabled,
			stress_threshold,
			spending_amount,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		policy.ID,
		userID,
		policy.Enabled,
		policy.Triggers.StressThreshold,
		policy.Triggers.SpendingAmount,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create intervention policy: %w", err)
	}

	return nil
}

// UpdatePolicy 按 ID 整体替换一条策略
func (r *InterventionPoliciesRepository) UpdatePolicy(ctx context.Context, userID string, policy *models.InterventionPolicy) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if policy.ID == "" {
		return fmt.Errorf("policy_id is required")
	}

	query := `
		UPDATE intervention_policies
		SET enabled = $1,
		    stress_threshold = $2,
		    spending_amount = $3,
		    updated_at = $4
		WHERE policy_id = $5
		  AND user_id = $6
	`

	_, err := r.db.ExecContext(ctx, query,
		policy.Enabled,
		policy.Triggers.StressThreshold,
		policy.Triggers.SpendingAmount,
		time.Now(),
		policy.ID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update intervention policy: %w", err)
	}

	return nil
}

// DeletePolicy 按 ID 删除一条策略
func (r *InterventionPoliciesRepository) DeletePolicy(ctx context.Context, userID, policyID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if policyID == "" {
		return fmt.Errorf("policy_id is required")
	}

	query := `
		DELETE FROM intervention_policies
		WHERE policy_id = $1
		  AND user_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, policyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete intervention policy: %w", err)
	}

	return nil
}

// ListPolicies 按创建时间升序取全部策略（保持插入顺序求值）
func (r *InterventionPoliciesRepository) ListPolicies(ctx context.Context, userID string) ([]models.InterventionPolicy, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			policy_id,
			enabled,
			stress_threshold,
			spending_amount
		FROM intervention_policies
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list intervention policies: %w", err)
	}
	defer rows.Close()

	var policies []models.InterventionPolicy
	for rows.Next() {
		var p models.InterventionPolicy
		if err := rows.Scan(
			&p.ID,
			&p.Enabled,
			&p.Triggers.StressThreshold,
			&p.Triggers.SpendingAmount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intervention policy: %w", err)
		}
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intervention policies: %w", err)
	}

	return policies, nil
}
