// Package config loads the health-mirror server configuration.
//
// The YAML file has six top-level sections: server, analyzer, inference,
// storage, shipper and alerts. Every field has a default (see Defaults), so
// an empty file is a valid configuration. Secrets are never written in the
// YAML; fields ending in _env name an environment variable instead, and
// LoadDotEnv can populate those from a .env file at startup.
//
// Watch re-reads the file on change. Analyzer thresholds and alert rules
// from a reloaded config apply to sessions opened after the reload; ports,
// storage and inference settings require a restart.
package config
