// Package bootstrap builds the store and provider client shared by the api and ingest binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/config"
	"stealthcompany.com/symptomcheck/internal/couchbase"
	"stealthcompany.com/symptomcheck/internal/priaid"
	"stealthcompany.com/symptomcheck/internal/ratelimit"
	"stealthcompany.com/symptomcheck/internal/store"
	"stealthcompany.com/symptomcheck/internal/store/sqlstore"
)

// OpenStore connects the backend named by cfg.StoreDriver
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		log.Info().Str("dsn", cfg.SQLiteDSN).Msg("Opening SQLite store")
		return sqlstore.Open(ctx, cfg.SQLiteDSN, cfg.SQLDebug)
	case config.DriverCouchbase:
		return couchbase.NewClient(
			cfg.CouchbaseURL,
			cfg.CouchbaseUsername,
			cfg.CouchbasePassword,
			cfg.CouchbaseBucket,
			cfg.CouchbaseScope,
		)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewProvider builds the rate-limited provider client
func NewProvider(cfg *config.Config) (*priaid.Client, error) {
	return priaid.NewClient(priaid.Config{
		AuthURI:   cfg.PriaidAuthURI,
		APIURI:    cfg.PriaidAPIURI,
		APIKey:    cfg.PriaidAPIKey,
		SecretKey: cfg.PriaidSecretKey,
		Language:  cfg.PriaidLanguage,
		Timeout:   cfg.PriaidTimeout,
	}, ratelimit.NewLimiter(cfg.ProviderRateLimit))
}
