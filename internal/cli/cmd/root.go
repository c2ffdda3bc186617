package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"layerkit/internal/config"
	"layerkit/internal/console"
	"layerkit/internal/document"
	"layerkit/internal/logging"
	"layerkit/internal/model"
	"layerkit/internal/operation"
	"layerkit/internal/pipeline"
	"layerkit/internal/progress"
	"layerkit/internal/script"
	"layerkit/internal/ui"
)

const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitUsage      = 2
	ExitOpen       = 3
	ExitValidation = 4
	ExitCancelled  = 5
	ExitSave       = 6
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

var errUsage = errors.New("usage")

func usageError(err error) error {
	return fmt.Errorf("%w: %w", errUsage, err)
}

// usageArgs marks argument count errors as usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

type ctxKey string

const appKey ctxKey = "app"

// app is what every command needs, built once in the root pre-run.
type app struct {
	flags      model.GlobalFlags
	configFile string
	console  *console.Reporter
	logger   *zap.Logger
	renderer pipeline.Renderer
}

func (a *app) pipeline() *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithFlags(a.flags),
		pipeline.WithConsole(a.console),
		pipeline.WithLogger(a.logger),
	}
	if a.renderer != nil {
		opts = append(opts, pipeline.WithRenderer(a.renderer))
	}
	return pipeline.New(opts...)
}

func appFrom(cmd *cobra.Command) *app {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	if a, ok := cmd.Context().Value(appKey).(*app); ok {
		return a
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "layerkit",
		Short: "Inspect and transform resin printer layer documents",
		Long: "layerkit opens a sliced layer document, runs built-in operations or HCL scripts " +
			"over a range of its layers and saves the result, reporting each phase as it goes. " +
			"Press p to pause and c to cancel while a progress bar is shown.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupApp,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	bindGlobalFlags(root.PersistentFlags())

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCompletionCmd())

	root.AddCommand(newConvertCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newCopyParametersCmd())
	root.AddCommand(newSetThumbnailCmd())
	root.AddCommand(newSetPropertiesCmd())
	root.AddCommand(newRunCmd())

	root.AddCommand(newPrintPropertiesCmd())
	root.AddCommand(newPrintIssuesCmd())
	root.AddCommand(newPrintMachinesCmd())
	root.AddCommand(newPrintFormatsCmd())
	root.AddCommand(newPrintGCodeCmd())
	root.AddCommand(newPrintOperationsCmd())
	root.AddCommand(newPrintPathsCmd())

	root.AddCommand(newCompareCmd())

	return root
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolP("quiet", "q", false, "Suppress all console output")
	fs.Bool("no-progress", false, "Hide the progress bar, keep phase and timing lines")
	fs.Bool("dummy", false, "Run everything except the save phase")
	fs.Bool("core-version", false, "Print the version and exit")
	fs.String("config", "", "Config file (default is config.yaml in the user config directory)")
	fs.String("log-file", "", "Write structured logs to this file")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
}

func setupApp(cmd *cobra.Command, _ []string) error {
	v, err := config.Init(cmd.Root())
	if err != nil {
		return usageError(err)
	}
	flags := config.Globals(v)

	logger, err := logging.New(flags.LogFile, flags.LogLevel)
	if err != nil {
		return usageError(err)
	}

	out := cmd.OutOrStdout()
	a := &app{
		flags:      flags,
		configFile: v.ConfigFileUsed(),
		console:    console.New(console.WithWriters(out, cmd.ErrOrStderr()), console.WithQuiet(flags.Quiet)),
		logger:     logger,
	}
	if flags.ShowProgress() && isTerminal(out) {
		a.renderer = ui.NewRenderer(ui.WithOutput(out), ui.WithInterval(flags.ProgressInterval))
	}
	if flags.Dummy {
		a.console.WarningLine("> Dummy mode active!")
	}
	logger.Debug("command", zap.String("path", cmd.CommandPath()), zap.String("config", v.ConfigFileUsed()))

	cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
	return nil
}

// Execute runs the CLI against os.Args. Failures are already reported on the
// console when it returns; the caller only needs the exit code.
func Execute(ctx context.Context) error {
	if ee := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); ee != nil {
		return ee
	}
	return nil
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) *ExitError {
	if flagIsPresent(args, "--core-version") {
		_, _ = fmt.Fprintln(out, versionString())
		return nil
	}

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	c, err := root.ExecuteContextC(ctx)
	a := appFrom(c)
	if a != nil {
		defer func() { _ = a.logger.Sync() }()
	}
	if err == nil {
		return nil
	}

	ee := classify(err)
	if ee.Code == ExitCancelled {
		return ee
	}
	rep := console.New(console.WithWriters(out, errOut), console.WithQuiet(flagIsPresent(args, "--quiet", "-q")))
	if a != nil {
		rep = a.console
		a.logger.Error("command failed", zap.Int("exit_code", ee.Code), zap.Error(err))
	}
	if ee.Err != nil {
		rep.ErrorLine(ee.Err.Error())
	}
	return ee
}

// classify maps an error returned by a command to its exit code.
func classify(err error) *ExitError {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	code := ExitInternal
	switch {
	case errors.Is(err, progress.ErrCanceled):
		code = ExitCancelled
	case errors.Is(err, errUsage),
		errors.Is(err, script.ErrNotFound),
		errors.Is(err, operation.ErrUnknownOperation),
		strings.HasPrefix(err.Error(), "unknown command"):
		code = ExitUsage
	case errors.Is(err, pipeline.ErrOpen):
		code = ExitOpen
	case errors.Is(err, pipeline.ErrValidation),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, operation.ErrBadParam),
		errors.Is(err, script.ErrLoad),
		errors.Is(err, document.ErrUnknownProperty),
		errors.Is(err, document.ErrInvalidValue):
		code = ExitValidation
	case errors.Is(err, pipeline.ErrSave):
		code = ExitSave
	}
	return &ExitError{Code: code, Err: err}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// flagIsPresent scans raw arguments before cobra parses them.
func flagIsPresent(args []string, names ...string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		for _, n := range names {
			if a == n || strings.HasPrefix(a, n+"=") {
				return true
			}
		}
	}
	return false
}
