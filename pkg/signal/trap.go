// Package signal implements the signal trap used by isoserved to trigger a
// graceful shutdown.
package signal

import (
	"context"
	"os"
	gosignal "os/signal"
	"sync/atomic"
	"syscall"

	"github.com/containerd/log"
)

// maxInterrupts is the number of repeated SIGINT/SIGTERM after which cleanup
// is abandoned and the process exits immediately.
const maxInterrupts = 3

// Trap sets up a simplified signal "trap", appropriate for common
// behavior expected from a vanilla unix command-line tool in general
// (and the static file daemon in particular).
//
//   - If SIGINT or SIGTERM are received, cleanup is called once, in its own
//     goroutine. The caller decides how to exit once cleanup returns.
//   - If SIGINT or SIGTERM are repeated 3 times before cleanup is complete,
//     the process is terminated directly with exit code 128+signal.
func Trap(cleanup func()) {
	c := make(chan os.Signal, 1)
	gosignal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		var interruptCount atomic.Uint32
		for sig := range c {
			log.G(context.TODO()).Infof("Processing signal '%v'", sig)
			count := interruptCount.Add(1)
			switch {
			case count == 1:
				go cleanup()
			case count < maxInterrupts:
				log.G(context.TODO()).Info("Shutdown already in progress")
			default:
				log.G(context.TODO()).Info("Forcing shutdown, interrupting cleanup")
				os.Exit(128 + int(sig.(syscall.Signal)))
			}
		}
	}()
}
