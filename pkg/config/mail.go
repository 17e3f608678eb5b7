package config

import "time"

// MailConfig holds the secondary email service's own settings.
type MailConfig struct {
	// EmailAuthentication requires proof of ownership before an address
	// is usable. Disabling it makes every address count as confirmed.
	EmailAuthentication bool `env:"MULTIMAIL_EMAIL_AUTHENTICATION" env-default:"true"`
	// TokenExpiry is the confirmation token lifetime.
	TokenExpiry time.Duration `env:"MULTIMAIL_TOKEN_EXPIRY" env-default:"168h"`
	// BaseURL prefixes confirmation and undo links in outgoing mail.
	BaseURL string `env:"MULTIMAIL_BASE_URL" env-default:"http://localhost:4000"`
	// PersistenceType selects the repository backend: postgres or file.
	PersistenceType string `env:"MULTIMAIL_PERSISTENCE_TYPE" env-default:"postgres"`
	// DataDir is where the file backend keeps its state.
	DataDir string `env:"MULTIMAIL_DATA_DIR" env-default:"./data"`
}

// NewMailConfigFromEnv creates a MailConfig from environment variables.
func NewMailConfigFromEnv() MailConfig {
	return MailConfig{
		EmailAuthentication: GetEnvBool("MULTIMAIL_EMAIL_AUTHENTICATION", true),
		TokenExpiry:         GetEnvDuration("MULTIMAIL_TOKEN_EXPIRY", 168*time.Hour),
		BaseURL:             GetEnvOrDefault("MULTIMAIL_BASE_URL", "http://localhost:4000"),
		PersistenceType:     GetEnvOrDefault("MULTIMAIL_PERSISTENCE_TYPE", "postgres"),
		DataDir:             GetEnvOrDefault("MULTIMAIL_DATA_DIR", "./data"),
	}
}
