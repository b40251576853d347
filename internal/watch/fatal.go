// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"slices"
	"syscall"
)

// isFatalFsnotifyError reports errors after which the platform watcher
// stops delivering events, so Run has to give up.
func isFatalFsnotifyError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && slices.Contains(fatalErrnos, errno)
}
