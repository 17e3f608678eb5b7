package secondarymail

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig contains configuration for creating an email repository
type RepositoryConfig struct {
	// WritePool is required for PostgreSQL repositories
	WritePool *pgxpool.Pool
	// ReadPool optionally directs reads to a replica; nil falls back to WritePool
	ReadPool *pgxpool.Pool
	// DataDir is required for file-based repositories
	DataDir string
}

// NewEmailRepository creates an email repository for the given persistence type.
func NewEmailRepository(persistenceType string, config RepositoryConfig) (EmailRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.WritePool == nil {
			return nil, fmt.Errorf("write pool required for postgres repository")
		}
		return NewPostgresEmailRepository(config.WritePool, config.ReadPool), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileEmailRepository(config.DataDir)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file)", persistenceType)
	}
}
