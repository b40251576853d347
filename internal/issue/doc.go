// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into guidance a user can act on.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. The Issue catalog holds longer Markdown explanations for the
// common failure classes, rendered with glamour by `modctl explain`.
package issue
