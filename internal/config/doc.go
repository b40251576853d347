// SPDX-License-Identifier: MPL-2.0

// Package config handles modctl configuration using Viper with CUE as the
// file format.
//
// The file lives at <user config dir>/modctl/config.cue (for example
// ~/.config/modctl/config.cue on Linux) and is validated against the
// embedded #Config schema before it is merged over the defaults. Every key
// can be overridden from the environment with a MODCTL_ prefix, dots
// becoming underscores: MODCTL_DEVICE_TRANSPORT=ssh.
package config
