//go:build !unix

package main

import (
	"github.com/dray-io/circular/internal/latch"
	"github.com/dray-io/circular/internal/logging"
)

const dumpSignalName = "POST /dump"

// notifyDump is a no-op where SIGUSR1 does not exist; dumps are requested
// over HTTP instead.
func notifyDump(_ *latch.Latch, logger *logging.Logger) (stop func()) {
	logger.Debug("dump signal not supported on this platform")
	return func() {}
}
