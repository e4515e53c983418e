// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema.
//
// Parsing compiles the schema, unifies the user document with one of its
// definitions, validates the result and decodes it:
//
//	//go:embed config_schema.cue
//	var schema string
//
//	res, err := cueutil.ParseAndDecodeString[map[string]any](schema, data, "#Config",
//	    cueutil.WithFilename(path), cueutil.WithConcrete(false))
//
// Errors name the offending field in JSON-path notation, for example
// "config.cue: push.max_attempts: invalid value 0 (out of bound >=1)".
package cueutil
