// SPDX-License-Identifier: MPL-2.0

// Package mods is the mod lifecycle engine.
//
// A Manager owns the installed-mod Registry and drives three collaborators
// against a device.Port: Discovery rebuilds the registry from the manifests
// persisted on the device, the Deployer installs an archive and the Remover
// uninstalls a mod while keeping shared libraries that another installed mod
// still declares. The Deployer and Remover never call each other; they only
// meet through the registry, which is why the Manager runs at most one of
// them at a time.
package mods
