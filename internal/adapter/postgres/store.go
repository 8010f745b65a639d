package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skywise-ai/irops/internal/domain"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
)

// Store implements database.Store using PostgreSQL. Phase payloads and
// decisions are stored as JSONB snapshots; they are written once and read
// back verbatim for audit.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateAssessment(ctx context.Context, a *disruption.Assessment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assessments (id, session_id, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SessionID, a.Description, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

const assessmentColumns = `id, session_id, description, status, error, created_at, updated_at`

func scanAssessment(row pgx.Row, a *disruption.Assessment) error {
	return row.Scan(&a.ID, &a.SessionID, &a.Description, &a.Status, &a.Error, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) GetAssessment(ctx context.Context, id string) (*disruption.Assessment, error) {
	var a disruption.Assessment
	err := scanAssessment(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1`, assessmentColumns), id), &a)
	if err != nil {
		return nil, notFoundWrap(err, "get assessment %s", id)
	}
	return &a, nil
}

func (s *Store) ListAssessments(ctx context.Context) ([]disruption.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM assessments ORDER BY created_at DESC LIMIT 200`, assessmentColumns))
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []disruption.Assessment
	for rows.Next() {
		var a disruption.Assessment
		if err := scanAssessment(rows, &a); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAssessmentStatus(ctx context.Context, id string, status disruption.Status, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assessments SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update assessment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update assessment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) SavePhaseResult(ctx context.Context, requestID string, pr *assessment.PhaseResult) error {
	payload, err := json.Marshal(pr)
	if err != nil {
		return fmt.Errorf("marshal %s phase: %w", pr.Phase, err)
	}
	// The unique constraint makes phase writes idempotent per request.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessment_phases (request_id, phase, payload)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (request_id, phase) DO NOTHING`,
		requestID, string(pr.Phase), payload)
	if err != nil {
		return fmt.Errorf("save %s phase for %s: %w", pr.Phase, requestID, err)
	}
	return nil
}

func (s *Store) SaveDecision(ctx context.Context, d *assessment.FinalDecision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessment_decisions (request_id, payload)
		 VALUES ($1, $2)
		 ON CONFLICT (request_id) DO NOTHING`,
		d.RequestID, payload)
	if err != nil {
		return fmt.Errorf("save decision for %s: %w", d.RequestID, err)
	}
	return nil
}

func (s *Store) GetDecision(ctx context.Context, requestID string) (*assessment.FinalDecision, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM assessment_decisions WHERE request_id = $1`, requestID).Scan(&payload)
	if err != nil {
		return nil, notFoundWrap(err, "get decision %s", requestID)
	}

	var d assessment.FinalDecision
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("unmarshal decision %s: %w", requestID, err)
	}
	return &d, nil
}

func (s *Store) GetAuditTrail(ctx context.Context, requestID string) (*assessment.AuditTrail, error) {
	if _, err := s.GetAssessment(ctx, requestID); err != nil {
		return nil, err
	}

	trail := &assessment.AuditTrail{RequestID: requestID}

	rows, err := s.pool.Query(ctx,
		`SELECT phase, payload FROM assessment_phases WHERE request_id = $1`, requestID)
	if err != nil {
		return nil, fmt.Errorf("load phases %s: %w", requestID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var phase string
		var payload []byte
		if err := rows.Scan(&phase, &payload); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		var pr assessment.PhaseResult
		if err := json.Unmarshal(payload, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal %s phase: %w", phase, err)
		}
		switch assessment.Phase(phase) {
		case assessment.PhaseInitial:
			trail.Initial = &pr
		case assessment.PhaseRevision:
			trail.Revision = &pr
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d, err := s.GetDecision(ctx, requestID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	trail.Arbitration = d
	return trail, nil
}
