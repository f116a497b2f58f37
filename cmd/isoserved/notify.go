package main

import (
	"context"

	"github.com/containerd/log"
	"github.com/coreos/go-systemd/v22/daemon"
)

// notifyReady tells the service manager that the daemon is ready to serve.
func notifyReady() {
	sdNotify(daemon.SdNotifyReady)
}

// notifyStopping tells the service manager that the daemon is stopping.
func notifyStopping() {
	sdNotify(daemon.SdNotifyStopping)
}

func sdNotify(state string) {
	// It is common to ignore the error, as the daemon is usually not
	// started by systemd.
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.G(context.TODO()).WithError(err).Debug("Failed to notify the service manager")
	}
}
