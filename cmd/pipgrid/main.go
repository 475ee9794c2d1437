package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/pipgrid/internal/config"
	"github.com/1broseidon/pipgrid/internal/daemon"
	"github.com/1broseidon/pipgrid/internal/ipc"
	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/runtimepath"
	"github.com/1broseidon/pipgrid/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "board":
		os.Exit(runBoard(os.Args[2:]))
	case "add":
		os.Exit(runAdd(os.Args[2:]))
	case "remove":
		os.Exit(runRemove(os.Args[2:]))
	case "move":
		os.Exit(runMove(os.Args[2:]))
	case "click":
		os.Exit(runClick(os.Args[2:]))
	case "columns":
		os.Exit(runColumns(os.Args[2:]))
	case "movie":
		os.Exit(runToggle("movie", "Turn movie mode (reduced capture rate) on or off.", os.Args[2:], (*ipc.Client).SetMovieMode))
	case "automin":
		os.Exit(runToggle("automin", "Minimize restored windows when they lose the foreground.", os.Args[2:], (*ipc.Client).SetAutoMinimize))
	case "pause":
		os.Exit(runToggle("pause", "Suspend or resume capture of every window.", os.Args[2:], (*ipc.Client).SetPaused))
	case "pick":
		os.Exit(runPick(os.Args[2:]))
	case "logs":
		os.Exit(runLogs(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pipgrid <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the pipgrid daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Re-read the config file in the daemon")
	fmt.Fprintln(w, "  logs                Show recent board events")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  list                List windows that can be monitored")
	fmt.Fprintln(w, "  board               Show the thumbnail grid")
	fmt.Fprintln(w, "  add <id>            Add a window to the grid")
	fmt.Fprintln(w, "  remove <id>         Remove a window from the grid")
	fmt.Fprintln(w, "  move <id> up|down   Move a window one slot earlier or later")
	fmt.Fprintln(w, "  click <id>          Expand a window, or collapse it when expanded")
	fmt.Fprintln(w, "  pick                Choose a window from a launcher menu")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  columns <3-5>       Set the grid column count")
	fmt.Fprintln(w, "  movie on|off        Toggle movie mode")
	fmt.Fprintln(w, "  automin on|off      Toggle auto-minimize")
	fmt.Fprintln(w, "  pause on|off        Pause or resume capture")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config init         Write a default config file")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open the interactive grid")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'pipgrid <command> --help' for command-specific options.")
}

func isHelpArg(args []string) bool {
	return len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help")
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the capture pipeline and IPC server in the foreground.")
		fmt.Fprintln(os.Stderr, "SIGHUP reloads the config file; SIGINT/SIGTERM stop the daemon.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	cfg := res.Config
	if res.File != "" {
		log.Printf("Configuration loaded from %s (columns: %d, fps: %d/%d)", res.File, cfg.GridColumns, cfg.CaptureFPS, cfg.MovieFPS)
	} else {
		log.Printf("No config file found, using defaults (columns: %d, fps: %d/%d)", cfg.GridColumns, cfg.CaptureFPS, cfg.MovieFPS)
	}

	pidPath, err := runtimepath.PIDPath()
	if err != nil {
		log.Printf("Failed to resolve runtime dir: %v", err)
		return 1
	}
	release, err := runtimepath.AcquirePID(pidPath)
	if err != nil {
		log.Printf("Failed to start daemon: %v", err)
		return 1
	}
	defer release()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))

	backend, err := platform.NewBackend()
	if err != nil {
		log.Printf("Failed to connect to display: %v", err)
		return 1
	}
	defer backend.Disconnect()

	d, err := daemon.New(cfg, backend, daemon.Options{
		ConfigPath: *path,
		Logger:     logger,
	})
	if err != nil {
		log.Printf("Failed to start daemon: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				log.Println("Received SIGHUP, reloading config...")
				if err := d.Reload(); err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
				log.Println("Config reloaded successfully")
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("pipgrid daemon listening on %s", d.SocketPath())
	if err := d.Run(ctx); err != nil {
		log.Printf("Daemon stopped: %v", err)
		return 1
	}
	log.Println("Shutting down pipgrid daemon...")
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	started := time.Now().Add(-time.Duration(status.UptimeSeconds) * time.Second)
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("started:        %s\n", humanize.Time(started))
	fmt.Printf("monitored:      %d\n", status.Monitored)
	fmt.Printf("columns:        %d\n", status.Columns)
	fmt.Printf("focus:          %s\n", status.Focus)
	fmt.Printf("movie_mode:     %v\n", status.MovieMode)
	fmt.Printf("paused:         %v\n", status.Paused)
	fmt.Printf("auto_minimize:  %v\n", status.AutoMinimize)
	fmt.Printf("cache:          %d frames, %s\n", status.CacheFrames, humanize.IBytes(status.CacheBytes))
	fmt.Printf("resamples:      %s (%s reused)\n", humanize.Comma(int64(status.Resamples)), humanize.Comma(int64(status.Reuses)))
	return 0
}

func runReload(args []string) int {
	if isHelpArg(args) {
		fmt.Fprintln(os.Stdout, "Usage: pipgrid reload")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "Ask the running daemon to re-read its config file.")
		return 0
	}
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "reload takes no arguments")
		return 2
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || isHelpArg(args) {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  pipgrid config init [--path PATH] [--force]")
		fmt.Fprintln(os.Stderr, "  pipgrid config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  pipgrid config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  pipgrid config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("init", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
		force := fs.Bool("force", false, "Overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		target := *path
		if target == "" {
			p, err := config.DefaultConfigPath()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			target = p
		}
		if err := config.WriteDefault(target, *force); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("wrote %s\n", target)
		return 0

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Printf("# loaded from %s\n", res.File)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/pipgrid/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}

func runTUI(args []string) int {
	if isHelpArg(args) {
		fmt.Fprintln(os.Stderr, "Usage: pipgrid tui")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive thumbnail grid. Requires a running daemon.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  arrows, hjkl  Select a window")
		fmt.Fprintln(os.Stderr, "  Enter         Expand or collapse the selected window")
		fmt.Fprintln(os.Stderr, "  u/d           Move the selected window earlier/later")
		fmt.Fprintln(os.Stderr, "  x             Remove the selected window")
		fmt.Fprintln(os.Stderr, "  n             Add a window")
		fmt.Fprintln(os.Stderr, "  m/a/p         Toggle movie mode, auto-minimize, pause")
		fmt.Fprintln(os.Stderr, "  3/4/5         Set column count")
		fmt.Fprintln(os.Stderr, "  ?             Show all keys")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C     Quit")
		return 0
	}
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "tui takes no arguments")
		return 2
	}

	if err := tui.Run(ipc.NewClient()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
