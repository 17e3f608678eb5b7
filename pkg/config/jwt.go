package config

// JwtConfig holds verification settings for the tokens the identity
// platform issues; this service only verifies, it never mints.
type JwtConfig struct {
	Secret   string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"JWT_ISSUER" env-default:"multimail"`
	Audience string `env:"JWT_AUDIENCE" env-default:"multimail"`
}

// NewJwtConfigFromEnv creates a JwtConfig from environment variables.
func NewJwtConfigFromEnv() JwtConfig {
	return JwtConfig{
		Secret:   GetEnvOrDefault("JWT_SECRET", "very-secure-jwt-secret"),
		Issuer:   GetEnvOrDefault("JWT_ISSUER", "multimail"),
		Audience: GetEnvOrDefault("JWT_AUDIENCE", "multimail"),
	}
}
