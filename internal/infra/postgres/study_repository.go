package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"study-service/internal/domain"
)

// StudyRepository stores each study as one JSONB document keyed by id and owner.
type StudyRepository struct {
	pool *pgxpool.Pool
}

func NewStudyRepository(pool *pgxpool.Pool) *StudyRepository {
	return &StudyRepository{pool: pool}
}

func (r *StudyRepository) Create(ctx context.Context, study *domain.Study) error {
	raw, err := json.Marshal(study)
	if err != nil {
		return fmt.Errorf("marshal study: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO studies (id, user_id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		study.ID, study.UserID, raw, study.CreatedAt, study.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert study: %w", err)
	}
	return nil
}

func (r *StudyRepository) Get(ctx context.Context, userID, id string) (domain.Study, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM studies WHERE id=$1 AND user_id=$2`, id, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Study{}, domain.ErrStudyNotFound
	}
	if err != nil {
		return domain.Study{}, fmt.Errorf("load study: %w", err)
	}
	var study domain.Study
	if err := json.Unmarshal(raw, &study); err != nil {
		return domain.Study{}, fmt.Errorf("unmarshal study: %w", err)
	}
	return study, nil
}

func (r *StudyRepository) List(ctx context.Context, userID string) ([]domain.Study, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM studies WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var out []domain.Study
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		var study domain.Study
		if err := json.Unmarshal(raw, &study); err != nil {
			return nil, fmt.Errorf("unmarshal study: %w", err)
		}
		out = append(out, study)
	}
	return out, rows.Err()
}

func (r *StudyRepository) Update(ctx context.Context, study *domain.Study) error {
	raw, err := json.Marshal(study)
	if err != nil {
		return fmt.Errorf("marshal study: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE studies SET data=$3, updated_at=$4 WHERE id=$1 AND user_id=$2`,
		study.ID, study.UserID, raw, study.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update study: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStudyNotFound
	}
	return nil
}
