//go:build unix

package main

import (
	"os"
	"os/signal"

	"github.com/dray-io/circular/internal/latch"
	"github.com/dray-io/circular/internal/logging"
	"golang.org/x/sys/unix"
)

const dumpSignalName = "SIGUSR1"

// notifyDump raises l on every SIGUSR1 until the returned stop is called.
func notifyDump(l *latch.Latch, logger *logging.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ch:
				logger.Debug("dump signal received")
				l.Set()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
