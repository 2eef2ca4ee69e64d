package artifacts

import (
	"fmt"

	"go.uber.org/zap"

	"manga/offchain/internal/config"
	"manga/offchain/internal/database"
)

// Open returns the store selected by the configured artifact backend and a
// function releasing its resources
func Open(cfg *config.Config, logger *zap.Logger) (Store, func() error, error) {
	switch cfg.Deployment.Backend {
	case "file", "":
		store := NewFileStore(cfg.Deployment.OutputDir, logger)
		return store, func() error { return nil }, nil

	case "postgres":
		db, err := database.Connect(database.ConfigFrom(cfg.Database))
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewPostgresStore(db, logger), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown artifact backend %q", cfg.Deployment.Backend)
	}
}
