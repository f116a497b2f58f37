package main

import (
	"github.com/moby/isoserve/daemon/config"
	dopts "github.com/moby/isoserve/opts"
	"github.com/spf13/pflag"
)

// installConfigFlags adds flags to the pflag.FlagSet to configure the daemon
func installConfigFlags(conf *config.Config, flags *pflag.FlagSet) {
	flags.VarP(dopts.NewNamedListOptsRef("hosts", &conf.Hosts, dopts.ValidateHost), "host", "H", "Address to listen on (tcp://[host]:port, unix://path or fd://*)")

	flags.StringVar(&conf.Root, "root", conf.Root, "Directory to serve files from")
	flags.Var(dopts.NewNamedListOptsRef("index", &conf.Index, dopts.ValidateFileName), "index", "File to serve for a directory, may be repeated (empty to disable)")
	flags.StringVar(&conf.Dotfiles, "dotfiles", conf.Dotfiles, `How to treat files starting with "." ("ignore"|"deny"|"allow")`)
	flags.BoolVar(&conf.Redirect, "redirect", conf.Redirect, "Redirect to a trailing slash when the path is a directory")
	flags.BoolVar(&conf.ETag, "etag", conf.ETag, "Send a weak ETag header")
	flags.BoolVar(&conf.LastModified, "last-modified", conf.LastModified, "Send a Last-Modified header")
	flags.IntVar(&conf.MaxAge, "max-age", conf.MaxAge, "Max-age of the Cache-Control header, in seconds")

	flags.BoolVarP(&conf.Debug, "debug", "D", false, "Enable debug mode")
	flags.StringVarP(&conf.LogLevel, "log-level", "l", conf.LogLevel, `Set the logging level ("debug"|"info"|"warn"|"error"|"fatal")`)
	flags.StringVar(&conf.LogFormat, "log-format", conf.LogFormat, `Set the logging format ("text"|"json")`)

	flags.StringVarP(&conf.Pidfile, "pidfile", "p", conf.Pidfile, "Path to use for daemon PID file")
	flags.IntVar(&conf.ShutdownTimeout, "shutdown-timeout", conf.ShutdownTimeout, "Seconds to wait for requests in flight on shutdown")
	flags.StringVar(&conf.MetricsAddress, "metrics-addr", "", "Set address and port to serve the metrics api on")

	flags.BoolVar(&conf.TLS, "tls", false, "Use TLS")
	flags.StringVar(&conf.CertFile, "tlscert", "", "Path to TLS certificate file")
	flags.StringVar(&conf.KeyFile, "tlskey", "", "Path to TLS key file")
}
