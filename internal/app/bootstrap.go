package app

import (
	"log/slog"

	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
	"github.com/Shehuna2/MafitaPay-sub002/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Sync.PersistSnapshots {
		store, err := storage.NewStore()
		if err != nil {
			return err
		}
		b.Store = store
		slog.Info("Snapshot database initialized")
	}

	return nil
}
