package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"manga/offchain/internal/database"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

// PostgresStore keeps records in the deployments table. The history row and
// the latest pointer are written in one transaction.
type PostgresStore struct {
	db     *database.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewPostgresStore creates a store on an open database
func NewPostgresStore(db *database.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		now:    time.Now,
		logger: logger.Named("artifacts"),
	}
}

func (s *PostgresStore) Save(ctx context.Context, rec *models.DeploymentRecord) (string, error) {
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}

	now := s.now()
	for attempt := 0; attempt < maxKeyAttempt; attempt++ {
		key := historyKey(now, attempt)
		row := &models.DeploymentRow{
			Key:        key,
			Network:    rec.Network,
			ChainID:    int64(rec.ChainID),
			Deployer:   rec.Deployer,
			DeployedAt: rec.DeploymentTime,
			Record:     data,
		}

		err := s.db.InTransaction(func(tx *sqlx.Tx) error {
			if err := database.InsertDeployment(ctx, tx, row); err != nil {
				return fmt.Errorf("failed to insert deployment: %w", err)
			}
			if err := database.SetLatestDeployment(ctx, tx, key); err != nil {
				return fmt.Errorf("failed to update latest deployment: %w", err)
			}
			return nil
		})
		if database.IsUniqueViolation(err) {
			// taken by a concurrent run
			s.logger.Debug("Deployment key taken", zap.String("key", key))
			continue
		}
		if err != nil {
			return "", err
		}

		s.logger.Info("Deployment record saved", zap.String("key", key))
		return key, nil
	}
	return "", fmt.Errorf("no free deployment key for %d", now.UnixMilli())
}

func (s *PostgresStore) Load(ctx context.Context, key string) (*models.DeploymentRecord, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	var (
		row *models.DeploymentRow
		err error
	)
	if key == LatestKey {
		row, err = s.db.GetLatestDeployment(ctx)
	} else {
		row, err = s.db.GetDeployment(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment %s: %w", key, err)
	}
	if row == nil {
		return nil, &errs.NotFoundError{Key: key}
	}
	return Decode(row.Record)
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.db.ListDeploymentKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return sortKeys(keys), nil
}
