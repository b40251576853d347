// SPDX-License-Identifier: MPL-2.0

// Package modmanifest models the mod.json document shipped inside every mod archive.
//
// A manifest declares the mod's identity (id, name, version), the application it
// targets (gameId, gameVersion) and two ordered file lists:
//   - modFiles: files private to the mod, deployed to the application's mods directory
//   - libraryFiles: shared native libraries that several mods may declare
//
// The same document is persisted on the device as <id>.json once a mod is installed,
// so [Parse] is used both for archives and for discovery of installed mods.
//
// Parsing is pure: the bytes are validated against an embedded CUE schema, decoded
// with the generated easyjson codec and then checked for path rules that CUE cannot
// express (relative paths that stay inside the archive root).
package modmanifest
