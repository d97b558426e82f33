// Package config provides configuration management for the gatekeeper.
//
// Configuration is loaded from YAML with environment variable overrides and
// validated as a whole. Every section has defaults, so an empty file (or no
// file) yields a working in-process setup: builtin rules, no collaborators,
// and a SQLite audit log that stays detached until audit.enabled is set.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("gatekeeper.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("gatekeeper.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GATEKEEPER_SECTION_FIELD:
//
//   - GATEKEEPER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GATEKEEPER_RULES_SOURCE overrides rules.source
//   - GATEKEEPER_AUDIT_POSTGRES_DSN overrides audit.postgres.dsn
//   - GATEKEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Credential fields (git token and passphrase, postgres DSN and password,
// collaborator header values) additionally expand ${VAR} references.
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values
//  2. YAML file
//  3. Environment variables
//
// # Validation
//
// Validate reports every problem at once as a ValidationError holding one
// FieldError per offending field, for example:
//
//	configuration validation failed with 2 errors:
//	  - rules.git.repository: is required when source is "git"
//	  - audit.retention.prune_schedule: invalid cron expression: ...
//
// There is no process-wide configuration. The CLI loads a Config per command
// and hands each section to the component that needs it.
package config
