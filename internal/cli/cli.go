// Package cli defines the command-line surface of the build backend's
// configuration tool.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/pybuildgo/internal/app"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// flags collects every command-line option before validation.
type flags struct {
	projectDir string
	localFiles []string
	crossFiles []string
	localExprs []string
	crossExprs []string
	logFormat  string
	logLevel   string
}

func (f *flags) appConfig() (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		ProjectDir: f.projectDir,
		LocalFiles: f.localFiles,
		CrossFiles: f.crossFiles,
		LocalExprs: f.localExprs,
		CrossExprs: f.crossExprs,
		LogFormat:  f.logFormat,
		LogLevel:   f.logLevel,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// NewRootCmd builds the root command. Output (logs and results) goes to
// outW so tests can capture it.
func NewRootCmd(outW io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "pybuild",
		Short: "pybuild resolves the build configuration of a Python package with a CMake build",
		Long: `pybuild reads pyproject.toml and merges it with OS-specific sections,
cross-compilation sections, local override files and command-line
overrides into one validated build configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.projectDir, "project", "C", ".", "Directory containing pyproject.toml.")
	pf.StringArrayVar(&f.localFiles, "local", nil, "Extra local override file (.toml or .ovr); may be repeated.")
	pf.StringArrayVar(&f.crossFiles, "cross", nil, "Extra cross-compilation override file (.toml or .ovr); may be repeated.")
	pf.StringArrayVarP(&f.localExprs, "override", "o", nil, "Override expression, e.g. 'cmake.build_type=\"Debug\"'; may be repeated.")
	pf.StringArrayVar(&f.crossExprs, "override-cross", nil, "Override expression for the cross section; may be repeated.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level: 'debug', 'info', 'warn' or 'error'.")

	root.AddCommand(newConfigCmd(outW, f))
	root.AddCommand(newCMakeCmd(outW, f))
	return root
}

// newConfigCmd resolves the full configuration and prints the resolved
// tool table as TOML.
func newConfigCmd(outW io.Writer, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config [DIR]",
		Short: "Resolve and print the effective build configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.projectDir = args[0]
			}
			cfg, err := f.appConfig()
			if err != nil {
				return err
			}
			a := app.New(cmd.ErrOrStderr(), cfg)
			res, err := a.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			return a.WriteResolved(outW, res)
		},
	}
}

// newCMakeCmd resolves the configuration and prints the cmake command
// lines it produces, without running any of them.
func newCMakeCmd(outW io.Writer, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "cmake [DIR]",
		Short: "Print the cmake invocations of the resolved configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.projectDir = args[0]
			}
			cfg, err := f.appConfig()
			if err != nil {
				return err
			}
			a := app.New(cmd.ErrOrStderr(), cfg)
			res, err := a.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			return a.WriteCMakePlan(outW, res)
		},
	}
}
