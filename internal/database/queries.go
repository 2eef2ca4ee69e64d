package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"manga/offchain/internal/models"
)

// ==================== Deployment Queries ====================

// InsertDeployment appends a deployment to the history. Keys are unique, an
// existing key is an error.
func InsertDeployment(ctx context.Context, tx *sqlx.Tx, row *models.DeploymentRow) error {
	query := `
		INSERT INTO deployments (key, network, chain_id, deployer, deployed_at, record)
		VALUES (:key, :network, :chain_id, :deployer, :deployed_at, :record)
	`
	_, err := tx.NamedExecContext(ctx, query, row)
	return err
}

// SetLatestDeployment points the latest marker at key
func SetLatestDeployment(ctx context.Context, tx *sqlx.Tx, key string) error {
	query := `
		INSERT INTO deployment_latest (id, deployment_key, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET deployment_key = EXCLUDED.deployment_key, updated_at = NOW()
	`
	_, err := tx.ExecContext(ctx, query, key)
	return err
}

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a duplicate key error
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// GetDeployment retrieves a deployment by key
func (db *DB) GetDeployment(ctx context.Context, key string) (*models.DeploymentRow, error) {
	var row models.DeploymentRow
	query := `
		SELECT key, network, chain_id, deployer, deployed_at, record
		FROM deployments
		WHERE key = $1
	`
	err := db.GetContext(ctx, &row, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetLatestDeployment retrieves the deployment the latest marker points at
func (db *DB) GetLatestDeployment(ctx context.Context) (*models.DeploymentRow, error) {
	var row models.DeploymentRow
	query := `
		SELECT d.key, d.network, d.chain_id, d.deployer, d.deployed_at, d.record
		FROM deployment_latest l
		JOIN deployments d ON d.key = l.deployment_key
		WHERE l.id = 1
	`
	err := db.GetContext(ctx, &row, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListDeploymentKeys returns every history key, oldest first
func (db *DB) ListDeploymentKeys(ctx context.Context) ([]string, error) {
	var keys []string
	query := `SELECT key FROM deployments ORDER BY deployed_at ASC, created_at ASC`
	err := db.SelectContext(ctx, &keys, query)
	return keys, err
}
