package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"ddl-alterator/internal/catalog"
	"ddl-alterator/internal/compat"
	"ddl-alterator/internal/engine"
	"ddl-alterator/internal/storage"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type CatalogConfig struct {
	Name      string `mapstructure:"name"`
	Type      string `mapstructure:"type"` // "glue" or "sql"
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	CatalogID string `mapstructure:"catalog_id"`
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	Active    bool   `mapstructure:"active"`
}

// GetActiveCatalogConfig returns the currently active catalog configuration.
func GetActiveCatalogConfig() (*CatalogConfig, error) {
	var configs []CatalogConfig

	if err := viper.UnmarshalKey("catalogs", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse catalogs config: %w", err)
	}

	var activeConfig *CatalogConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active catalog found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active catalogs found (only one can be active)")
	}

	return activeConfig, nil
}

// openCatalog connects to the active catalog. The returned closer releases
// any connection it holds.
func openCatalog(ctx context.Context, cfg *CatalogConfig) (catalog.Catalog, func(), error) {
	switch cfg.Type {
	case "", "glue":
		g, err := catalog.NewGlue(ctx, catalog.GlueConfig{
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			CatalogID: cfg.CatalogID,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, func() {}, nil
	case "sql":
		db, err := sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		store := catalog.NewSQLStore(db, cfg.Driver, cfg.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported catalog type %q", cfg.Type)
	}
}

// newAlterator wires the active catalog, the object store and the settings
// shared by every subcommand.
func newAlterator(ctx context.Context, validate, force bool) (*engine.Alterator, *storage.Service, func(), error) {
	cfg, err := GetActiveCatalogConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	Logger.Info("using catalog", zap.String("name", cfg.Name), zap.String("type", cfg.Type))

	queryEngine, err := compat.ParseEngine(viper.GetString("settings.query_engine"))
	if err != nil {
		return nil, nil, nil, err
	}

	cat, closer, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store := storage.New(nil)
	alt := engine.New(cat, store, Logger, engine.Options{
		Validate:       validate,
		Force:          force,
		Engine:         queryEngine,
		AccountID:      viper.GetString("settings.aws_account_id"),
		IcebergCatalog: viper.GetString("settings.iceberg_catalog"),
	})
	return alt, store, closer, nil
}
