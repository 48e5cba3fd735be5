package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

// PostgresStore implements Store over a Postgres database identified by
// DATABASE_URL. Enum columns hold the lowercase string values; raw_event and
// parameters are JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresStore{db: db}, nil
}

// RunMigrations applies migrationSQL (the embedded schema) to the database.
func (s *PostgresStore) RunMigrations(migrationSQL string) error {
	_, err := s.db.Exec(migrationSQL)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddThreat upserts t keyed on id. Only the mutable columns (ml_score,
// resolved, resolved_at) change on conflict; classification stays immutable.
func (s *PostgresStore) AddThreat(ctx context.Context, t *models.Threat) error {
	query := `
		INSERT INTO threat_events (
			id, detected_at, severity, threat_type,
			source_pod, source_namespace, source_container, source_user,
			description, falco_output, falco_rule, falco_priority,
			ml_score, confidence, raw_event, resolved, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			ml_score = EXCLUDED.ml_score,
			resolved = EXCLUDED.resolved,
			resolved_at = EXCLUDED.resolved_at
	`
	return instrument("add_threat", func() error {
		_, err := s.db.ExecContext(ctx, query,
			t.ID, t.DetectedAt, t.Severity, t.ThreatType,
			t.SourcePod, t.SourceNamespace, t.SourceContainer, t.SourceUser,
			t.Description, t.FalcoOutput, t.FalcoRule, t.FalcoPriority,
			t.MLScore, t.Confidence, t.RawEvent, t.Resolved, t.ResolvedAt,
		)
		return err
	})
}

// AddAction upserts a keyed on id; execution columns change on conflict.
func (s *PostgresStore) AddAction(ctx context.Context, a *models.RemediationAction) error {
	query := `
		INSERT INTO remediation_actions (
			id, threat_id, created_at, action_type, risk_level,
			confidence, ml_score, executed, executed_at, success, error_message,
			parameters, requires_confirmation, confirmed_by, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			executed = EXCLUDED.executed,
			executed_at = EXCLUDED.executed_at,
			success = EXCLUDED.success,
			error_message = EXCLUDED.error_message,
			confirmed_by = EXCLUDED.confirmed_by,
			confirmed_at = EXCLUDED.confirmed_at
	`
	return instrument("add_action", func() error {
		_, err := s.db.ExecContext(ctx, query,
			a.ID, a.ThreatID, a.CreatedAt, a.ActionType, a.RiskLevel,
			a.Confidence, a.MLScore, a.Executed, a.ExecutedAt, a.Success, a.ErrorMessage,
			a.Parameters, a.RequiresConfirmation, a.ConfirmedBy, a.ConfirmedAt,
		)
		return err
	})
}

// ListThreats returns all threats in insertion order.
func (s *PostgresStore) ListThreats(ctx context.Context) ([]*models.Threat, error) {
	var threats []*models.Threat
	query := `SELECT * FROM threat_events ORDER BY detected_at, id`
	err := instrument("list_threats", func() error {
		return s.db.SelectContext(ctx, &threats, query)
	})
	return threats, err
}

// ListActions returns all actions in insertion order.
func (s *PostgresStore) ListActions(ctx context.Context) ([]*models.RemediationAction, error) {
	var actions []*models.RemediationAction
	query := `SELECT * FROM remediation_actions ORDER BY created_at, id`
	err := instrument("list_actions", func() error {
		return s.db.SelectContext(ctx, &actions, query)
	})
	return actions, err
}

// GetThreat returns the threat with the given id, or ErrNotFound.
func (s *PostgresStore) GetThreat(ctx context.Context, id uuid.UUID) (*models.Threat, error) {
	var t models.Threat
	query := `SELECT * FROM threat_events WHERE id = $1`
	err := instrument("get_threat", func() error {
		return s.db.GetContext(ctx, &t, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAction returns the action with the given id, or ErrNotFound.
func (s *PostgresStore) GetAction(ctx context.Context, id uuid.UUID) (*models.RemediationAction, error) {
	var a models.RemediationAction
	query := `SELECT * FROM remediation_actions WHERE id = $1`
	err := instrument("get_action", func() error {
		return s.db.GetContext(ctx, &a, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkResolved sets resolved/resolved_at on the threat with the given id.
func (s *PostgresStore) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE threat_events SET resolved = TRUE, resolved_at = $2 WHERE id = $1`
	var affected int64
	err := instrument("mark_resolved", func() error {
		res, err := s.db.ExecContext(ctx, query, id, at.UTC())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
