package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fulfilment-backend/internal/repository"
)

type relationRepository struct {
	db *sql.DB
}

func NewRelationRepository(db *sql.DB) repository.RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) WriteRelation(ctx context.Context, tx *sql.Tx, resource, relation, subject string) error {
	query := `INSERT INTO relation_tuples (resource, relation, subject, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (resource, relation, subject) DO NOTHING`
	_, err := pick(r.db, tx).ExecContext(ctx, query, resource, relation, subject)
	if err != nil {
		return fmt.Errorf("failed to write relation: %w", err)
	}
	return nil
}

func (r *relationRepository) HasRelation(ctx context.Context, resource, relation, subject string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM relation_tuples WHERE resource = $1 AND relation = $2 AND subject = $3)`
	if err := r.db.QueryRowContext(ctx, query, resource, relation, subject).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check relation: %w", err)
	}
	return exists, nil
}
