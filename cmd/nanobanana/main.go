// Nanobanana is a terminal client for Gemini image generation. It keeps one
// conversation per process, streams the model's reasoning, text and images as
// they arrive, and can also serve the same conversation engine to browsers
// over a WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/nanobanana/pkg/appdir"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/webbridge"
)

// options are the flags shared by every mode.
type options struct {
	configPath string
	dirPath    string
	envFile    string
	logPath    string
	debug      bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to configuration file (default: .nanobanana/config.yaml or nanobanana.yaml)")
	fs.StringVar(&o.dirPath, "dir", appdir.DefaultRoot, "path to .nanobanana directory")
	fs.StringVar(&o.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.StringVar(&o.logPath, "log", "", "path to log file (default: <dir>/nanobanana.log)")
	fs.BoolVar(&o.debug, "debug", false, "log at debug level")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			fs := flag.NewFlagSet("init", flag.ExitOnError)
			fs.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: nanobanana init [flags]\n\nCreate a .nanobanana directory with a default config.\n\nFlags:\n")
				fs.PrintDefaults()
			}
			dir := fs.String("dir", appdir.DefaultRoot, "path to .nanobanana directory")
			defaults := fs.Bool("defaults", false, "skip the wizard and write the default config")
			_ = fs.Parse(os.Args[2:])

			exitOnErr(runInit(*dir, *defaults))
			return

		case "serve":
			fs := flag.NewFlagSet("serve", flag.ExitOnError)
			fs.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: nanobanana serve [flags]\n\nServe conversations to browsers over a WebSocket at /ws.\n\nFlags:\n")
				fs.PrintDefaults()
			}
			var o options
			o.register(fs)
			addr := fs.String("addr", "", "listen address (overrides web.addr)")
			origins := fs.String("origins", "", "comma-separated origin patterns allowed to connect")
			_ = fs.Parse(os.Args[2:])

			exitOnErr(loadDotEnv(o.envFile))
			exitOnErr(runServe(o, *addr, *origins))
			return
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nanobanana [flags]\n       nanobanana <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init    Create a .nanobanana directory with a default config\n  serve   Serve the conversation engine over a WebSocket\n")
	}

	var o options
	o.register(flag.CommandLine)
	flag.Parse()

	exitOnErr(loadDotEnv(o.envFile))
	exitOnErr(runTUI(o))
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the engine with a file logger.
func setup(o options) (*engine.Engine, func(), error) {
	d := appdir.New(o.dirPath)

	cfg, err := engine.LoadConfig(appdir.ResolveConfig(o.configPath, d))
	if err != nil {
		return nil, nil, err
	}
	cfg.Dir = d.Root()

	logPath := o.logPath
	if logPath == "" {
		logPath = d.LogPath()
	}
	logger, closeLog, err := openLog(logPath, o.debug)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	cleanup := func() {
		_ = eng.Close()
		closeLog()
	}
	return eng, cleanup, nil
}

func runTUI(o options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, cleanup, err := setup(o)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := eng.NewSession()
	model := newAppModel(ctx, eng, sess, appdir.New(o.dirPath))

	p := tea.NewProgram(model, tea.WithAltScreen())

	// Send the program reference so the model can start the bridge.
	go func() {
		p.Send(programReadyMsg{program: p})
	}()

	_, err = p.Run()
	return err
}

func runServe(o options, addr, origins string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, cleanup, err := setup(o)
	if err != nil {
		return err
	}
	defer cleanup()

	if addr == "" {
		addr = eng.Config().Web.Addr
	}
	if addr == "" {
		addr = engine.DefaultWebAddr
	}

	opts := []webbridge.Option{webbridge.WithLogger(eng.Logger())}
	if patterns := splitList(origins); len(patterns) > 0 {
		opts = append(opts, webbridge.WithOriginPatterns(patterns...))
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           webbridge.New(eng, opts...).Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Printf("Serving on ws://%s/ws\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	return srv.Shutdown(shutdownCtx)
}
