// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	for _, errno := range fatalErrnos {
		if !isFatalFsnotifyError(errno) {
			t.Errorf("%v should be fatal", errno)
		}
		if !isFatalFsnotifyError(fmt.Errorf("fsnotify: %w", errno)) {
			t.Errorf("wrapped %v should be fatal", errno)
		}
	}

	for _, err := range []error{
		nil,
		errors.New("inbox: read failed"),
		syscall.Errno(0),
		fmt.Errorf("fsnotify: %w", syscall.Errno(1)),
	} {
		if isFatalFsnotifyError(err) {
			t.Errorf("isFatalFsnotifyError(%v) = true, want false", err)
		}
	}
}
