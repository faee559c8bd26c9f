package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spendwell-biometrics/internal/models"
)

// InterventionEventsRepository 干预事件仓库（对应 intervention_events 表）
type InterventionEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInterventionEventsRepository 创建干预事件仓库
func NewInterventionEventsRepository(db *sql.DB, logger *zap.Logger) *InterventionEventsRepository {
	return &InterventionEventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEvent 写入一条干预事件
func (r *InterventionEventsRepository) CreateEvent(ctx context.Context, userID string, event *models.InterventionEvent) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if event.ID == "" {
		return fmt.Errorf("event_id is required")
	}

	policyJSON, err := json.Marshal(event.Policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	var outcome sql.NullString
	if event.Outcome != "" {
		outcome = sql.NullString{String: string(event.Outcome), Valid: true}
	}

	query := `
		INSERT INTO intervention_events (
			event_id,
			user_id,
			stress_level,
			policy,
			action,
			outcome,
			triggered_at,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		userID,
		event.StressLevel,
		policyJSON,
		event.Action,
		outcome,
		event.Timestamp,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create intervention event: %w", err)
	}

	return nil
}

// UpdateOutcome 覆盖事件的处理结果（如 dismissed）
//
// 事件不存在时不报错：dismiss 流程对未知 ID 是幂等空操作。
func (r *InterventionEventsRepository) UpdateOutcome(ctx context.Context, userID, eventID string, outcome models.InterventionOutcome) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		UPDATE intervention_events
		SET outcome = $1
		WHERE event_id = $2
		  AND user_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, string(outcome), eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to update intervention outcome: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		r.logger.Debug("Intervention event not found for outcome update",
			zap.String("event_id", eventID),
			zap.String("user_id", userID),
		)
	}

	return nil
}

// ListRecentEvents 按触发时间倒序取最近的事件
func (r *InterventionEventsRepository) ListRecentEvents(ctx context.Context, userID string, limit int) ([]models.InterventionEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			event_id,
			stress_level,
			policy,
			action,
			outcome,
			triggered_at
		FROM intervention_events
		WHERE user_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list intervention events: %w", err)
	}
	defer rows.Close()

	var events []models.InterventionEvent
	for rows.Next() {
		var event models.InterventionEvent
		var policyJSON []byte
		var outcome sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.StressLevel,
			&policyJSON,
			&event.Action,
			&outcome,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intervention event: %w", err)
		}

		if err := json.Unmarshal(policyJSON, &event.Policy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
		}
		if outcome.Valid {
			event.Outcome = models.InterventionOutcome(outcome.String)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intervention events: %w", err)
	}

	return events, nil
}
