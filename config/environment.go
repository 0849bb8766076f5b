package config

import (
	"os"
	"strings"
)

// Deployment environments recognised in APP_ENV.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"
)

// Common spellings accepted for APP_ENV, including typos seen in deploy
// manifests.
var environmentAliases = map[string]string{
	"dev":         EnvironmentDevelopment,
	"prod":        EnvironmentProduction,
	"producation": EnvironmentProduction,
	"stag":        EnvironmentStaging,
	"stagging":    EnvironmentStaging,
}

// AppEnvironment returns the normalised APP_ENV value, defaulting to
// development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether env runs with production rules: JSON logs
// and at least one enabled sink for the recorder.
func IsProductionLike(env string) bool {
	return env == EnvironmentProduction || env == EnvironmentStaging
}

// resolveEnvSpecificPath swaps defaultPath for the current environment's
// file. Any other explicit path is returned unchanged.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	envPath, ok := envPaths[AppEnvironment()]
	if ok && (path == defaultPath || path == envPath) {
		return envPath
	}
	return path
}
