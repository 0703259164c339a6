// Package cli implements the breaklinks command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/breaklinks/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
	exitDialogNo  = 3
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	logFormat string
	actor     string
	jsonMode  bool
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	flags  rootFlags
	v      *viper.Viper
	logger *slog.Logger
	prompt prompter
	stderr io.Writer
}

// NewRootCmd creates the top-level "breaklinks" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{prompt: huhPrompter{}})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "breaklinks",
		Short: "Remove, relink or break the links to items before they are deleted",
		Long: "breaklinks keeps a content tree and an index of the links between items.\n" +
			"Before items are deleted it removes every link pointing into them, repoints\n" +
			"those links at a replacement item, or leaves them broken.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DataDirName+")")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.flags.actor, "actor", "", "user recorded in edits and the audit trail (default: $USER)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newImportCmd(),
		a.newTreeCmd(),
		a.newReferrersCmd(),
		a.newCountCmd(),
		a.newRemoveCmd(),
		a.newRelinkCmd(),
		a.newDialogCmd(),
		a.newDeleteCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// setup loads config.yaml and configures logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.stderr == nil {
		a.stderr = cmd.ErrOrStderr()
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolving config dir: %w", err))
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.v = v

	level := firstNonEmpty(a.flags.logLevel, v.GetString(cfgKeyLogLevel))
	format := firstNonEmpty(a.flags.logFormat, v.GetString(cfgKeyLogFormat))
	logger, err := newLogger(a.stderr, level, format)
	if err != nil {
		return userError(err)
	}
	a.logger = logger
	slog.SetDefault(logger)

	if a.flags.actor == "" {
		a.flags.actor = firstNonEmpty(os.Getenv("USER"), os.Getenv("USERNAME"), "breaklinks")
	}
	return nil
}

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// exitCode maps an error returned by a command to a process exit code.
// Errors without an explicit code are usage errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
