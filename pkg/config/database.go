package config

import (
	"fmt"

	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL configuration. ReplicaHost is optional;
// when set, read queries of the secondary email repository go to the
// replica while writes stay on the primary.
type DatabaseConfig struct {
	Host        string `env:"MULTIMAIL_PG_HOST" env-default:"localhost"`
	Port        uint16 `env:"MULTIMAIL_PG_PORT" env-default:"5432"`
	Database    string `env:"MULTIMAIL_PG_DATABASE" env-default:"multimail_db"`
	User        string `env:"MULTIMAIL_PG_USER" env-default:"multimail"`
	Password    string `env:"MULTIMAIL_PG_PASSWORD" env-default:"pwd"`
	Schema      string `env:"MULTIMAIL_PG_SCHEMA" env-default:"public"`
	ReplicaHost string `env:"MULTIMAIL_PG_REPLICA_HOST"`
	ReplicaPort uint16 `env:"MULTIMAIL_PG_REPLICA_PORT" env-default:"5432"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL.
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// HasReplica reports whether a read replica is configured.
func (d DatabaseConfig) HasReplica() bool {
	return d.ReplicaHost != ""
}

// ToDbConfig converts the config to a db-utils DbConfig for the primary.
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

// ToReplicaDbConfig converts the config to a db-utils DbConfig pointing at
// the read replica. Only meaningful when HasReplica is true.
func (d DatabaseConfig) ToReplicaDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.ReplicaHost,
		Port:     d.ReplicaPort,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

// NewDatabaseConfigFromEnv creates a DatabaseConfig from environment variables.
func NewDatabaseConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:        GetEnvOrDefault("MULTIMAIL_PG_HOST", "localhost"),
		Port:        GetEnvUint16("MULTIMAIL_PG_PORT", 5432),
		Database:    GetEnvOrDefault("MULTIMAIL_PG_DATABASE", "multimail_db"),
		User:        GetEnvOrDefault("MULTIMAIL_PG_USER", "multimail"),
		Password:    GetEnvOrDefault("MULTIMAIL_PG_PASSWORD", "pwd"),
		Schema:      GetEnvOrDefault("MULTIMAIL_PG_SCHEMA", "public"),
		ReplicaHost: GetEnvOrDefault("MULTIMAIL_PG_REPLICA_HOST", ""),
		ReplicaPort: GetEnvUint16("MULTIMAIL_PG_REPLICA_PORT", 5432),
	}
}
