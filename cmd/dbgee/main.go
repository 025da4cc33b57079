// Command dbgee is a zero-configuration launcher that stops a freshly
// spawned program at its entry point so an external debugger can attach,
// and that informs a cooperating IDE of the attach parameters.
//
// Usage:
//
//	dbgee run   [-debugger gdb|lldb|dlv|debugpy|stop-and-write-pid] [-terminal tmux-window|tmux-pane|vscode] -- <debuggee> [args...]
//	dbgee set   [-debugger ...] [-terminal ...] [-cmd "<start command>"] <debuggee>
//	dbgee unset <debuggee>
//	dbgee hook  [-debugger ...] [-terminal ...] (-hook-exe <path> | -hook-source <f,f,...> | -hook-source-dir <dir>) -- <command> [args...]
//	dbgee status [-http <addr>]
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/dbgee/dbgee/internal/app"
	"github.com/dbgee/dbgee/internal/config"
	"github.com/dbgee/dbgee/internal/hook"
	"github.com/dbgee/dbgee/internal/ledger"
	"github.com/dbgee/dbgee/internal/logx"
	"github.com/dbgee/dbgee/internal/statusd"
	"github.com/dbgee/dbgee/internal/wrap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches the subcommand and returns the process exit code, per
// spec.md §6: the debuggee's own exit code on normal termination, 130 when
// signalled, 1 on a dbgee-internal failure, 0 on subcommand success with no
// running debuggee.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dbgee <run|set|unset|hook|status> [flags] -- <debuggee> [args...]")
		return 1
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "run":
		return cmdRun(rest)
	case "set":
		return cmdSet(rest)
	case "unset":
		return cmdUnset(rest)
	case "hook":
		return cmdHook(rest)
	case "status":
		return cmdStatus(rest)
	default:
		fmt.Fprintf(os.Stderr, "dbgee: unknown subcommand %q; use run, set, unset, hook, or status\n", sub)
		return 1
	}
}

// commonFlags holds the flags every subcommand shares.
type commonFlags struct {
	debugger   string
	debugPort  int
	terminal   string
	logLevel   string
	logFormat  string
	prefsPath  string
	noLedger   bool
	ledgerPath string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.debugger, "debugger", "", "debugger adapter: gdb, lldb, dlv, debugpy, or stop-and-write-pid (default: auto-detect)")
	fs.IntVar(&f.debugPort, "port", 0, "listen port for dlv or debugpy (default: 5679); ignored by other adapters")
	fs.StringVar(&f.terminal, "terminal", "", "attach terminal: tmux-window, tmux-pane, or vscode (default: auto-detect)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (default: info, or the preferences file's log_level)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text or json (default: json when stderr is not a terminal)")
	fs.StringVar(&f.prefsPath, "config", "", "path to the optional YAML preferences file (default: $XDG_CONFIG_HOME/dbgee/config.yaml)")
	fs.BoolVar(&f.noLedger, "no-ledger", false, "disable the session ledger for this invocation")
	fs.StringVar(&f.ledgerPath, "ledger-path", "", "override the session ledger database path")
	return f
}

// resolvePrefs loads the preferences file (or the zero-valued default if
// absent) and applies commonFlags overrides, which always win over the
// file per SPEC_FULL.md §1.
func resolvePrefs(f *commonFlags) (*config.Config, error) {
	path := f.prefsPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.debugger != "" {
		cfg.Debugger = f.debugger
	}
	if f.terminal != "" {
		cfg.Terminal = f.terminal
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.ledgerPath != "" {
		cfg.LedgerPath = f.ledgerPath
	}
	return cfg, nil
}

// buildApp wires a logger, classifier, and (unless disabled) a session
// ledger into an *app.App.
func buildApp(f *commonFlags, cfg *config.Config) (*app.App, func(), error) {
	// Every log line from this invocation carries the same invocation_id so
	// that a user correlating dbgee's own logs with the debuggee's output
	// (or with several dbgee invocations racing on the same target) can
	// tell which lines belong together.
	logger := logx.New(cfg.LogLevel, f.logFormat).With("invocation_id", uuid.NewString())

	if f.noLedger {
		return app.New(logger, nil), func() {}, nil
	}

	path := cfg.LedgerPath
	if path == "" {
		var err error
		path, err = defaultLedgerPath()
		if err != nil {
			logger.Warn("could not resolve default ledger path, disabling session ledger", "error", err)
			return app.New(logger, nil), func() {}, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warn("could not create ledger directory, disabling session ledger", "path", path, "error", err)
			return app.New(logger, nil), func() {}, nil
		}
	}

	l, err := ledger.Open(path)
	if err != nil {
		logger.Warn("could not open session ledger, continuing without it", "path", path, "error", err)
		return app.New(logger, nil), func() {}, nil
	}
	return app.New(logger, l), func() { _ = l.Close() }, nil
}

func defaultLedgerPath() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "dbgee", "ledger.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "dbgee", "ledger.db"), nil
}

// splitDashDash splits args on the first bare "--", returning the flags
// before it and the debuggee command after it. If there is no "--", every
// arg is treated as a flag and the command is empty.
func splitDashDash(args []string) (flags, cmd []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func cmdRun(args []string) int {
	flagArgs, cmdArgs := splitDashDash(args)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	f := addCommonFlags(fs)
	if err := fs.Parse(flagArgs); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(cmdArgs) == 0 {
		cmdArgs = rest
	} else {
		cmdArgs = append(append([]string{}, rest...), cmdArgs...)
	}
	if len(cmdArgs) == 0 {
		fmt.Fprintln(os.Stderr, "dbgee run: missing debuggee path, e.g. `dbgee run -- /bin/hello arg0`")
		return 1
	}

	cfg, err := resolvePrefs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	a, closeApp, err := buildApp(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	defer closeApp()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	code, err := a.Run(ctx, app.RunOpts{
		DebuggerName: cfg.Debugger,
		DebuggerPort: f.debugPort,
		TerminalName: cfg.Terminal,
		Target:       cmdArgs[0],
		Args:         cmdArgs[1:],
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	return code
}

func cmdSet(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	f := addCommonFlags(fs)
	startCmd := fs.String("cmd", "", "if given, run this command to completion after installing the shim, then uninstall it")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dbgee set [flags] <debuggee>")
		return 1
	}
	target := fs.Arg(0)

	cfg, err := resolvePrefs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	a, closeApp, err := buildApp(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	defer closeApp()

	dbgeeBin, err := os.Executable()
	if err != nil {
		dbgeeBin = "dbgee"
	}
	var flags []string
	if cfg.Debugger != "" {
		flags = append(flags, "-debugger", cfg.Debugger)
	}
	if cfg.Terminal != "" {
		flags = append(flags, "-terminal", cfg.Terminal)
	}
	if f.debugPort != 0 {
		flags = append(flags, "-port", strconv.Itoa(f.debugPort))
	}
	runCmd := wrap.ReconstructRunCommand(dbgeeBin, flags)

	opts := app.SetOpts{Target: target, RunCmd: runCmd}
	if *startCmd != "" {
		opts.StartCmd = strings.Fields(*startCmd)
	}

	if err := a.Set(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	return 0
}

func cmdUnset(args []string) int {
	fs := flag.NewFlagSet("unset", flag.ContinueOnError)
	f := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dbgee unset [flags] <debuggee>")
		return 1
	}
	target := fs.Arg(0)

	cfg, err := resolvePrefs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	a, closeApp, err := buildApp(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	defer closeApp()

	if err := a.Unset(context.Background(), target); err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	return 0
}

func cmdHook(args []string) int {
	flagArgs, cmdArgs := splitDashDash(args)
	fs := flag.NewFlagSet("hook", flag.ContinueOnError)
	f := addCommonFlags(fs)
	hookExe := fs.String("hook-exe", "", "attach to the descendant whose executable is exactly this path")
	hookSource := fs.String("hook-source", "", "comma-separated list of source file paths; attach to the descendant whose DWARF info references any of them")
	hookSourceDir := fs.String("hook-source-dir", "", "attach to the descendant whose DWARF info references any source file under this directory")
	if err := fs.Parse(flagArgs); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(cmdArgs) == 0 {
		cmdArgs = rest
	} else {
		cmdArgs = append(append([]string{}, rest...), cmdArgs...)
	}
	if len(cmdArgs) == 0 {
		fmt.Fprintln(os.Stderr, "dbgee hook: missing command, e.g. `dbgee hook -hook-exe /bin/worker -- /bin/supervisor`")
		return 1
	}

	opts := hook.Opts{Executable: *hookExe, SourceDir: *hookSourceDir}
	if *hookSource != "" {
		opts.Source = strings.Split(*hookSource, ",")
	}
	if !opts.AnySet() {
		fmt.Fprintln(os.Stderr, "dbgee hook: at least one of -hook-exe, -hook-source, -hook-source-dir is required")
		return 1
	}

	cfg, err := resolvePrefs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	a, closeApp, err := buildApp(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	defer closeApp()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	err = a.Hook(ctx, app.HookOpts{
		DebuggerName: cfg.Debugger,
		DebuggerPort: f.debugPort,
		TerminalName: cfg.Terminal,
		Command:      cmdArgs[0],
		Args:         cmdArgs[1:],
		Conditions:   opts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	return 0
}

func cmdStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	f := addCommonFlags(fs)
	httpAddr := fs.String("http", "", "if set, serve status over HTTP at this loopback address instead of printing once (e.g. 127.0.0.1:8700)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := resolvePrefs(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	a, closeApp, err := buildApp(f, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	defer closeApp()

	if a.Ledger == nil {
		fmt.Fprintln(os.Stderr, "dbgee status: session ledger is disabled (-no-ledger or unwritable ledger path)")
		return 1
	}

	if *httpAddr != "" {
		host, _, err := net.SplitHostPort(*httpAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dbgee status: invalid -http address %q: %v\n", *httpAddr, err)
			return 1
		}
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			fmt.Fprintf(os.Stderr, "dbgee status: -http address %q is not a loopback address\n", *httpAddr)
			return 1
		}
		a.Logger.Info("status server listening", "addr", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, statusd.NewRouter(a.Ledger)); err != nil {
			fmt.Fprintf(os.Stderr, "dbgee: status server: %v\n", err)
			return 1
		}
		return 0
	}

	wrapped, err := a.Ledger.WrappedTargets(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbgee: %v\n", err)
		return 1
	}
	if len(wrapped) == 0 {
		fmt.Println("no executables are currently wrapped")
		return 0
	}
	fmt.Println("currently wrapped:")
	for _, t := range wrapped {
		fmt.Println(" ", t)
	}
	return 0
}
