// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"github.com/charmbracelet/log"
)

type (
	// Reporter receives human-readable progress lines. It never influences
	// control flow; the outcome of an operation is its returned error.
	Reporter interface {
		Progress(msg string)
	}

	// ReporterFunc adapts a function to Reporter.
	ReporterFunc func(msg string)

	// LogReporter writes progress through a charm logger at info level.
	LogReporter struct {
		Logger *log.Logger
	}

	nopReporter struct{}
)

// Progress implements Reporter.
func (f ReporterFunc) Progress(msg string) { f(msg) }

// Progress implements Reporter.
func (r LogReporter) Progress(msg string) {
	if r.Logger == nil {
		return
	}
	r.Logger.Info(msg)
}

func (nopReporter) Progress(string) {}
