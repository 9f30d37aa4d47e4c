/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/conclave-im/conclave/admin"
	"github.com/conclave-im/conclave/event"
	"github.com/conclave-im/conclave/group"
	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/module/roster"
	"github.com/conclave-im/conclave/module/xep0045"
	"github.com/conclave-im/conclave/module/xep0060"
	"github.com/conclave-im/conclave/privacy"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/storage/repository"
	"github.com/conclave-im/conclave/version"
	"github.com/pkg/errors"
)

const (
	defaultShutDownWaitTime = time.Duration(5) * time.Second
)

var logoStr = []string{
	`    ____  ____   ____   ____ |  | _____ ___  __ ____  `,
	`  _/ ___\/  _ \ /    \_/ ___\|  | \__  \\  \/ // __ \ `,
	`  \  \__(  <_> )   |  \  \___|  |__/ __ \\   /\  ___/ `,
	`   \___  >____/|___|  /\___  >____(____  /\_/  \___  >`,
	`       \/           \/     \/          \/          \/ `,
}

const usageStr = `
Usage: conclave [options]

Server Options:
    -c, --config <file>    Configuration file path
Common Options:
    -h, --help             Show this message
    -v, --version          Show version
`

// Application encapsulates a conclave server application.
type Application struct {
	output           io.Writer
	args             []string
	container        repository.Container
	router           *router.Router
	rosterMod        *roster.Roster
	mucMod           *xep0045.Muc
	pubSubMod        *xep0060.PubSub
	adminSrv         *admin.Server
	waitStopCh       chan os.Signal
	shutDownWaitSecs time.Duration
}

// New returns a runnable application given an output and a command line arguments array.
func New(output io.Writer, args []string) *Application {
	return &Application{
		output:           output,
		args:             args,
		waitStopCh:       make(chan os.Signal, 1),
		shutDownWaitSecs: defaultShutDownWaitTime}
}

// Run runs conclave application until either a stop signal is received or an error occurs.
func (a *Application) Run() error {
	if len(a.args) == 0 {
		return errors.New("empty command-line arguments")
	}
	var configFile string
	var showVersion, showUsage bool

	fs := flag.NewFlagSet("conclave", flag.ExitOnError)
	fs.SetOutput(a.output)

	fs.BoolVar(&showUsage, "help", false, "Show this message")
	fs.BoolVar(&showUsage, "h", false, "Show this message")
	fs.BoolVar(&showVersion, "version", false, "Print version information.")
	fs.BoolVar(&showVersion, "v", false, "Print version information.")
	fs.StringVar(&configFile, "config", "/etc/conclave/conclave.yml", "Configuration file path.")
	fs.StringVar(&configFile, "c", "/etc/conclave/conclave.yml", "Configuration file path.")
	fs.Usage = func() {
		for i := range logoStr {
			_, _ = fmt.Fprintf(a.output, "%s\n", logoStr[i])
		}
		_, _ = fmt.Fprintf(a.output, "%s\n", usageStr)
	}
	_ = fs.Parse(a.args[1:])

	// print usage
	if showUsage {
		fs.Usage()
		return nil
	}
	// print version
	if showVersion {
		_, _ = fmt.Fprintf(a.output, "conclave version: %v\n", version.ApplicationVersion)
		return nil
	}
	// load configuration
	var cfg Config
	err := cfg.FromFile(configFile)
	if err != nil {
		return err
	}
	// create PID file
	if err := a.createPIDFile(cfg.PIDFile); err != nil {
		return err
	}
	// initialize logger
	if err := log.Initialize(&cfg.Logger); err != nil {
		return err
	}

	// show conclave's fancy logo
	a.printLogo()

	// initialize storage
	a.container, err = storage.New(&cfg.Storage)
	if err != nil {
		return err
	}
	storage.Set(a.container)

	// initialize router
	a.router, err = router.New(&cfg.Router)
	if err != nil {
		return err
	}

	// initialize shared group manager and modules...
	bus := event.NewBus()
	groups := group.NewManager(bus)
	checker := privacy.NewManager()

	a.rosterMod = roster.New(&cfg.Roster, a.router, groups, checker, bus)
	if cfg.MUC != nil {
		a.mucMod = xep0045.New(cfg.MUC, a.router)
	}
	if cfg.PubSub != nil {
		a.pubSubMod = xep0060.New(cfg.PubSub, a.router)
	}

	// initialize admin server...
	if cfg.Admin != nil && cfg.Admin.Port > 0 {
		var reporter admin.QueueReporter
		if a.pubSubMod != nil {
			reporter = a.pubSubMod
		}
		a.adminSrv = admin.New(cfg.Admin, reporter)
		if err := a.adminSrv.Start(); err != nil {
			return err
		}
	}

	// ...wait for stop signal to shutdown
	sig := a.waitForStopSignal()
	log.Infof("received %s signal... shutting down...", sig.String())

	return a.gracefullyShutdown()
}

func (a *Application) createPIDFile(pidFile string) error {
	if len(pidFile) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), os.ModePerm); err != nil {
		return err
	}
	file, err := os.Create(pidFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	currentPid := os.Getpid()
	if _, err := file.WriteString(strconv.FormatInt(int64(currentPid), 10)); err != nil {
		return err
	}
	return nil
}

func (a *Application) printLogo() {
	for i := range logoStr {
		log.Infof("%s", logoStr[i])
	}
	log.Infof("")
	log.Infof("conclave %v\n", version.ApplicationVersion)
}

func (a *Application) waitForStopSignal() os.Signal {
	signal.Notify(a.waitStopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	return <-a.waitStopCh
}

func (a *Application) gracefullyShutdown() error {
	// wait until application has been shut down
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(a.shutDownWaitSecs))
	defer cancel()

	select {
	case <-a.shutdown(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Application) shutdown(ctx context.Context) <-chan bool {
	c := make(chan bool, 1)
	go func() {
		if a.adminSrv != nil {
			_ = a.adminSrv.Shutdown(ctx)
		}
		if a.pubSubMod != nil {
			_ = a.pubSubMod.Shutdown()
		}
		if a.mucMod != nil {
			_ = a.mucMod.Shutdown()
		}
		_ = a.rosterMod.Shutdown()

		_ = a.container.Close(ctx)
		storage.Unset()

		log.Shutdown()
		c <- true
	}()
	return c
}
