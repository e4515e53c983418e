// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is read from config.cue in the user config directory (see Dir)
// or from the file passed with --appgen-config, validated against the embedded
// schema (config_schema.cue), and overridden by APPGEN_* environment variables.
// Keys cover the container engine, image build and push, the ECR region, CWL
// generation and the application catalog.
package config
