// Package config holds the environment-driven configuration shared by the
// multimail commands: database pools, outbound mail, rate limits and the
// mail service's own knobs. Structs carry cleanenv tags; the
// New*FromEnv constructors exist for callers that assemble configuration
// piecemeal.
package config
