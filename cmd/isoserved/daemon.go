package main

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/log"
	"github.com/docker/go-connections/tlsconfig"
	"github.com/moby/isoserve/daemon/config"
	"github.com/moby/isoserve/daemon/listeners"
	"github.com/moby/isoserve/daemon/server"
	"github.com/moby/isoserve/daemon/server/middleware"
	"github.com/moby/isoserve/daemon/server/router/static"
	dopts "github.com/moby/isoserve/opts"
	"github.com/moby/isoserve/pkg/pidfile"
	"github.com/moby/isoserve/pkg/signal"
	"github.com/moby/isoserve/version"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DaemonCli represents the daemon CLI.
type DaemonCli struct {
	*config.Config

	api     *server.Server
	stopped chan struct{}
}

// NewDaemonCli returns a daemon CLI
func NewDaemonCli() *DaemonCli {
	return &DaemonCli{
		stopped: make(chan struct{}),
	}
}

func (cli *DaemonCli) start(ctx context.Context, opts *daemonOptions) (err error) {
	if cli.Config, err = loadDaemonCliConfig(opts); err != nil {
		return err
	}
	if err := configureDaemonLogs(cli.Config); err != nil {
		return err
	}

	log.G(ctx).WithFields(log.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
	}).Info("Starting up")

	root, err := checkRoot(cli.Config.Root)
	if err != nil {
		return err
	}
	cli.Config.Root = root

	if cli.Pidfile != "" {
		if err := pidfile.Write(cli.Pidfile, os.Getpid()); err != nil {
			return errors.Wrap(err, "failed to start daemon")
		}
		defer func() {
			if err := pidfile.Remove(cli.Pidfile); err != nil {
				log.G(ctx).Error(err)
			}
		}()
	}

	tp, otelShutdown := newTracerProvider(ctx)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			log.G(ctx).WithError(err).Warn("Failed to shutdown tracer provider")
		}
	}()

	tlsConfig, err := newAPIServerTLSConfig(cli.Config)
	if err != nil {
		return err
	}
	lss, err := loadListeners(ctx, cli.Config, tlsConfig)
	if err != nil {
		return err
	}

	if err := startMetricsServer(ctx, cli.Config.MetricsAddress); err != nil {
		for _, l := range lss {
			_ = l.Close()
		}
		return errors.Wrap(err, "failed to start metrics server")
	}

	cli.api = server.New()
	cli.api.Accept("", lss...)
	initMiddlewares(cli.api)

	handler := cli.api.CreateMux(ctx, static.NewRouter(static.Options{
		Root:         cli.Config.Root,
		Index:        cli.Config.Index,
		Dotfiles:     cli.Config.Dotfiles,
		Redirect:     cli.Config.Redirect,
		ETag:         cli.Config.ETag,
		LastModified: cli.Config.LastModified,
		MaxAge:       cli.Config.MaxAge,
	}))

	// The serve API routine never exits unless an error occurs
	// We need to start it as a goroutine and wait on it so
	// daemon doesn't exit
	serveAPIWait := make(chan error)
	go func() {
		serveAPIWait <- cli.api.Serve(ctx, handler)
	}()

	signal.Trap(cli.stop)
	notifyReady()

	log.G(ctx).WithField("root", cli.Config.Root).Info("Daemon has completed initialization")

	// Daemon is fully initialized. Start handling API traffic
	// and wait for serve API to complete.
	errAPI := <-serveAPIWait
	notifyStopping()
	if errAPI != nil {
		return errors.Wrap(errAPI, "shutting down due to ServeAPI error")
	}
	<-cli.stopped

	log.G(ctx).Info("Daemon shutdown complete")
	return nil
}

// stop shuts the API server down, waiting at most shutdown-timeout seconds
// for the requests in flight.
func (cli *DaemonCli) stop() {
	defer close(cli.stopped)

	timeout := time.Duration(cli.Config.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.G(ctx).WithField("timeout", timeout).Info("Shutting down")
	if err := cli.api.Shutdown(ctx); err != nil {
		log.G(ctx).WithError(err).Warn("Requests still in flight were interrupted")
	}
}

func initMiddlewares(s *server.Server) {
	// The last middleware added is the outermost one, so the isolation
	// headers are set before anything else can write the response.
	s.UseMiddleware(middleware.NewMetricsMiddleware())
	s.UseMiddleware(middleware.NewRequestLogMiddleware())
	s.UseMiddleware(middleware.NewIsolationMiddleware())
}

func loadDaemonCliConfig(opts *daemonOptions) (*config.Config, error) {
	conf := opts.daemonConfig
	flags := opts.flags

	if opts.configFile != "" {
		c, err := config.MergeDaemonConfigurations(conf, flags, opts.configFile)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to configure the isoserve daemon with file %s", opts.configFile)
		}
		conf = c
	} else if err := config.Validate(conf); err != nil {
		return nil, err
	}

	if len(conf.Hosts) == 0 {
		conf.Hosts = []string{dopts.DefaultHost}
	}
	for i, h := range conf.Hosts {
		host, err := dopts.ParseHost(h)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing -H %s", h)
		}
		conf.Hosts[i] = host
	}

	if conf.Index == nil {
		conf.Index = []string{config.DefaultIndex}
	}

	return conf, nil
}

// configureDaemonLogs sets the logging level and format.
func configureDaemonLogs(conf *config.Config) error {
	if conf.LogFormat != "" {
		if err := log.SetFormat(log.OutputFormat(conf.LogFormat)); err != nil {
			return err
		}
	}
	level := conf.LogLevel
	if conf.Debug {
		level = "debug"
	}
	if level != "" {
		if err := log.SetLevel(level); err != nil {
			return errors.Wrap(err, "unable to configure logging")
		}
	}
	return nil
}

// checkRoot resolves root to an absolute path without symlinks, and checks
// that it is a directory the daemon can read.
func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "unable to get absolute root directory %s", root)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrapf(err, "root directory %s is not accessible", root)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", errors.Wrapf(err, "root directory %s is not accessible", root)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", errors.Wrapf(err, "root directory %s is not accessible", root)
	}
	if !fi.IsDir() {
		return "", errors.Errorf("root directory %s is not a directory", root)
	}
	return abs, nil
}

func newAPIServerTLSConfig(conf *config.Config) (*tls.Config, error) {
	if !conf.TLS {
		return nil, nil
	}
	tlsConfig, err := tlsconfig.Server(tlsconfig.Options{
		CertFile: conf.CertFile,
		KeyFile:  conf.KeyFile,
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid TLS configuration")
	}
	return tlsConfig, nil
}

func loadListeners(ctx context.Context, conf *config.Config, tlsConfig *tls.Config) ([]net.Listener, error) {
	scheme := "http"
	if tlsConfig != nil {
		scheme = "https"
	}

	var lss []net.Listener
	for _, h := range conf.Hosts {
		proto, addr, ok := strings.Cut(h, "://")
		if !ok {
			return nil, errors.Errorf("bad format %s, expected PROTO://ADDR", h)
		}
		ls, err := listeners.Init(proto, addr, tlsConfig)
		if err != nil {
			for _, l := range lss {
				_ = l.Close()
			}
			return nil, err
		}
		for _, l := range ls {
			if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
				log.G(ctx).Infof("Server is running at %s://localhost:%d", scheme, tcpAddr.Port)
			}
		}
		log.G(ctx).Debugf("Listener created for HTTP on %s (%s)", proto, addr)
		lss = append(lss, ls...)
	}
	return lss, nil
}
