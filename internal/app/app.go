package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/pybuildgo/internal/buildcfg"
	"github.com/vk/pybuildgo/internal/ctxlog"
	"github.com/vk/pybuildgo/internal/document"
	"github.com/vk/pybuildgo/internal/platform"
	"github.com/vk/pybuildgo/internal/resolver"
	"github.com/vk/pybuildgo/internal/schema"
	"github.com/vk/pybuildgo/internal/validate"
)

// App encapsulates one configuration resolution run: the project to
// read, the overrides to apply, and where to log.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// New builds an App with its own isolated logger.
func New(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	return &App{outW: outW, logger: logger, config: config}
}

// Resolution carries the outcome of a full resolve-and-validate run.
type Resolution struct {
	// Build is the typed view of the validated configuration.
	Build *buildcfg.Config
	// Raw is the validated configuration tree.
	Raw *resolver.Result
}

// Resolve loads pyproject.toml, merges every configuration layer,
// validates the result and returns both the typed and raw views.
func (a *App) Resolve(ctx context.Context) (*Resolution, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	pyproject, err := document.Load(filepath.Join(a.config.ProjectDir, "pyproject.toml"))
	if err != nil {
		return nil, err
	}

	plat := platform.Detect()
	if len(a.config.CrossFiles) > 0 || len(a.config.CrossExprs) > 0 {
		plat.CrossCompiling = true
	}
	res, err := resolver.Resolve(ctx, resolver.Inputs{
		Pyproject:  pyproject,
		ProjectDir: a.config.ProjectDir,
		LocalFiles: a.config.LocalFiles,
		CrossFiles: a.config.CrossFiles,
		LocalExprs: a.config.LocalExprs,
		CrossExprs: a.config.CrossExprs,
		EnvLocal:   os.Getenv(resolver.EnvLocalFiles),
		EnvCross:   os.Getenv(resolver.EnvCrossFiles),
		Platform:   plat,
	})
	if err != nil {
		return nil, err
	}

	checked, err := validate.Validate(schema.Options(), res.Resolved, res.Explicit, res.CrossCompiling, res.Sources)
	if err != nil {
		return nil, err
	}
	res.Resolved = checked

	a.logger.InfoContext(ctx, "configuration valid",
		"project", a.config.ProjectDir,
		"cross_compiling", res.CrossCompiling)

	return &Resolution{
		Build: buildcfg.FromTree(checked, res.CrossCompiling),
		Raw:   res,
	}, nil
}
