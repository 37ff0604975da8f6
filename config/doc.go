// Package config loads YAML configuration for process-wide retrieval
// defaults and collaborator settings. A missing file yields defaults;
// API keys are resolved from the environment, never stored in the file.
package config
