// Command piond is pion's daemon binary (spec §6's CLI surface): it
// loads a service configuration file, starts the HTTP server, and
// runs until SIGINT/SIGTERM. Grounded on s00inx-goserver/server.go's
// top-level wiring (scheduler -> tcp.Server -> router) extended with
// pluginmgr-loaded services and pionctx shutdown handling, and on
// hexinfra-gorox/cmds/gorox's usage-string CLI convention for the
// flag surface.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/avgx/pion/config"
	"github.com/avgx/pion/httpserver"
	"github.com/avgx/pion/pionctx"
	"github.com/avgx/pion/pluginmgr"
	"github.com/avgx/pion/scheduler"
	"github.com/avgx/pion/tcp"
)

const usage = `
piond - pion HTTP server daemon

USAGE

  piond [OPTIONS] <config-file>

OPTIONS

  -listen <addr>   address to listen on (default "127.0.0.1:8080")
  -threads <n>     worker thread count (default 0, meaning hardware concurrency)
  -daemonize       detach from the controlling terminal (Unix only)
  -reuseport       set SO_REUSEPORT on the listening socket

`

func main() {
	var (
		listen     = flag.String("listen", "127.0.0.1:8080", "address to listen on")
		threads    = flag.Int("threads", 0, "worker thread count")
		daemonize  = flag.Bool("daemonize", false, "detach from the controlling terminal")
		reusePort  = flag.Bool("reuseport", false, "set SO_REUSEPORT on the listening socket")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	configPath := flag.Arg(0)

	if *daemonize {
		daemonizeOrExit()
	}

	log := newLogger()
	defer log.Sync()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalw("failed to load configuration", "path", configPath, "err", err)
	}

	plugins := pluginmgr.New()
	for _, p := range cfg.Paths {
		plugins.AddSearchPath(p.Dir)
	}

	srv := httpserver.New(plugins, log)
	for _, svc := range cfg.Services {
		id := svc.Resource
		if err := srv.LoadService(svc.Resource, id, svc.File); err != nil {
			log.Fatalw("failed to load service", "resource", svc.Resource, "file", svc.File, "err", err)
		}
	}
	for _, opt := range cfg.Options {
		if err := srv.SetServiceOption(opt.Resource, opt.Name, opt.Value); err != nil {
			log.Fatalw("failed to set service option", "resource", opt.Resource, "name", opt.Name, "err", err)
		}
	}

	sched, err := scheduler.New(*threads, log)
	if err != nil {
		log.Fatalw("failed to start scheduler", "err", err)
	}

	ctx := pionctx.New(sched, log)
	tcpSrv := tcp.NewServer(sched, srv.ConnectionHandler(), log)
	if err := ctx.AddServer("http", tcpSrv, "tcp4", *listen, *reusePort); err != nil {
		log.Fatalw("failed to listen", "addr", *listen, "err", err)
	}
	log.Infow("piond listening", "addr", tcpSrv.Addr())

	sig := ctx.WaitForShutdownSignal()
	log.Infow("shutting down", "signal", sig)
	ctx.Shutdown()
	log.Infow("shutdown complete")
}

func newLogger() *zap.SugaredLogger {
	var zl *zap.Logger
	var err error
	if os.Getenv("PION_LOG_MODE") == "dev" {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return zl.Sugar()
}

func loadConfig(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return config.Parse(f)
}
