package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/console"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/graphics"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/lower"
	"github.com/antibyte/retrobasic/pkg/sound"
	"github.com/antibyte/retrobasic/pkg/source"
	"github.com/antibyte/retrobasic/pkg/terminal"
	tlsmanager "github.com/antibyte/retrobasic/pkg/tls"
	"github.com/antibyte/retrobasic/pkg/virtualfs"
	"github.com/antibyte/retrobasic/pkg/vm"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "settings file, created with defaults when missing")
	dump := flag.Bool("dump", false, "print the instruction stream before running")
	serve := flag.String("serve", "", "run the terminal server on `addr` instead of a program; \"config\" uses [Terminal] listen")
	tokenUser := flag.String("token", "", "print a terminal token for `user` and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: retrobasic [flags] program.bas\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, *dump, *serve, *tokenUser, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, dump bool, serve, tokenUser string, args []string) error {
	// Initialize configuration (before all other initializations)
	if err := configuration.Initialize(configPath); err != nil {
		return fmt.Errorf("error initializing configuration: %v", err)
	}
	if err := logger.Initialize(); err != nil {
		return fmt.Errorf("error initializing logger: %v", err)
	}
	defer logger.Close()
	logger.ConfigInfo("retrobasic started - configuration loaded from: %s", configPath)

	if tokenUser != "" {
		token, err := auth.GenerateUserToken(uuid.NewString(), tokenUser)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	storage, env, closeStorage, err := openStorage()
	if err != nil {
		return err
	}
	defer closeStorage()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if serve != "" {
		return serveTerminal(ctx, serve, storage, env)
	}
	if len(args) != 1 {
		flag.Usage()
		return errors.New("exactly one program file expected")
	}
	return runProgram(ctx, args[0], dump, storage, env)
}

// openStorage returns the data file storage and environment selected by
// [Files] storage.
func openStorage() (files.Storage, vm.Environment, func() error, error) {
	switch mode := configuration.GetString("Files", "storage", "os"); mode {
	case "sqlite":
		store, err := virtualfs.Open(configuration.GetString("Files", "database", "retrobasic.db"))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	case "os":
		dir := configuration.GetString("Files", "base_dir", ".")
		return files.OSStorage{Dir: dir}, vm.NewProcessEnv(), func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown [Files] storage %q", mode)
	}
}

func openCanvas() graphics.Canvas {
	if configuration.GetString("Graphics", "backend", "none") == "svg" {
		return graphics.NewSVGCanvas(
			configuration.GetString("Graphics", "svg_output", "screen.svg"),
			configuration.GetInt("Graphics", "width", 640),
			configuration.GetInt("Graphics", "height", 200))
	}
	return graphics.NewNullCanvas()
}

func runProgram(ctx context.Context, path string, dump bool, storage files.Storage, env vm.Environment) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	mode := source.ParseDuplicateMode(configuration.GetString("Interpreter", "duplicate_lines", "error"))
	prog, err := lower.Compile(f, mode)
	f.Close()
	if err != nil {
		return err
	}
	if dump || configuration.GetBool("Interpreter", "dump_ir", false) {
		if err := prog.Dump(os.Stdout); err != nil {
			return err
		}
	}

	sys, err := console.Open(os.Stdin, os.Stdout, console.OptionsFromConfig())
	if err != nil {
		return err
	}
	defer sys.Close()

	machine := vm.New(prog, vm.Services{
		Console: sys.Console,
		Files:   files.NewTable(storage),
		Env:     env,
		Canvas:  openCanvas(),
		Sound:   sound.NewPlayer(os.Stdout, storage, configuration.GetBool("Sound", "enabled", true)),
	}, vm.OptionsFromConfig())
	err = machine.Run(ctx)
	logger.Info(logger.AreaRuntime, "run %s of %s finished: %v", machine.RunID(), path, err)
	return err
}

// serveTerminal runs the websocket terminal until ctx ends.
func serveTerminal(ctx context.Context, addr string, storage files.Storage, env vm.Environment) error {
	if addr == "config" {
		addr = configuration.GetString("Terminal", "listen", ":8080")
	}
	tlsManager, err := tlsmanager.NewTLSManager(tlsmanager.ConfigFromSettings())
	if err != nil {
		return err
	}

	opts := terminal.OptionsFromConfig()
	opts.Storage = storage
	if _, shared := env.(*virtualfs.Store); shared {
		opts.Env = env
	}
	handler := terminal.NewTerminalHandler(opts)
	go opts.Runs.Guard(ctx, 2*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/run", handler.HandleWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "retrobasic terminal: connect a websocket to /run\n")
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	if tlsManager.GetTLSConfig() != nil {
		// Port 80 answers ACME challenges and redirects everything else.
		go func() {
			if err := http.ListenAndServe(":80", tlsManager.GetHTTPHandler(nil)); err != nil {
				logger.TerminalError("HTTP challenge server failed: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		handler.Shutdown()
		srv.Shutdown(context.Background())
	}()

	logger.TerminalInfo("Terminal server listening on %s (TLS: %v)", addr, tlsManager.IsEnabled())
	if err := tlsManager.ListenAndServe(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
