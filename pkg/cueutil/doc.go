// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates documents against embedded CUE schemas.
//
// JSON is a subset of CUE, so the same flow serves the JSON mod manifests and
// the CUE configuration file:
//
//  1. Compile the embedded schema
//  2. Compile the document and unify it with a schema definition
//  3. Validate, reporting failures with JSON-path prefixes
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var schema []byte
//
//	if _, err := cueutil.Validate(schema, data, "#ModManifest",
//	    cueutil.WithFilename("mod.json")); err != nil {
//	    return nil, err // e.g. "mod.json: gameId: incomplete value string"
//	}
package cueutil
