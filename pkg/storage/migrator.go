package storage

import (
	"context"
	"sort"
	"time"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

// MigrationProvider runs the schema migrations of one database engine.
type MigrationProvider interface {
	// RunMigrations migrates up to config.TargetVersion, or to the latest
	// version when it is zero. A target below the current version migrates down.
	RunMigrations(ctx context.Context, config MigrationConfig) error

	// GetCurrentVersion returns the current migration version of the database.
	GetCurrentVersion(ctx context.Context, config MigrationConfig) (int64, error)

	// GetSupportedEngine returns the database engine this provider supports.
	GetSupportedEngine() string
}

// MigrationConfig contains the configuration needed for running migrations.
type MigrationConfig struct {
	Engine        string
	URI           string
	TargetVersion uint
	Timeout       time.Duration
	Verbose       bool
	Username      string
	Password      string
	Logger        logger.Logger
}

// MigratorRegistry maps engine names to their migration provider.
type MigratorRegistry struct {
	providers map[string]MigrationProvider
}

func NewMigratorRegistry() *MigratorRegistry {
	return &MigratorRegistry{
		providers: make(map[string]MigrationProvider),
	}
}

// RegisterProvider registers provider under the engine it reports, replacing
// any previous registration.
func (r *MigratorRegistry) RegisterProvider(provider MigrationProvider) {
	r.providers[provider.GetSupportedEngine()] = provider
}

func (r *MigratorRegistry) GetProvider(engine string) (MigrationProvider, bool) {
	provider, exists := r.providers[engine]
	return provider, exists
}

// GetSupportedEngines returns the registered engine names, sorted.
func (r *MigratorRegistry) GetSupportedEngines() []string {
	engines := make([]string, 0, len(r.providers))
	for engine := range r.providers {
		engines = append(engines, engine)
	}
	sort.Strings(engines)
	return engines
}
