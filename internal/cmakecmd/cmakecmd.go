// Package cmakecmd assembles cmake command lines from the resolved
// configuration. It only builds argument vectors; running them is the
// build frontend's job, which keeps this package trivially testable.
package cmakecmd

import (
	"sort"
	"strings"

	"github.com/vk/pybuildgo/internal/buildcfg"
)

// Planner builds configure, build and install invocations for one
// source/build directory pair.
type Planner struct {
	cfg       *buildcfg.CMake
	cross     *buildcfg.Cross
	sourceDir string
	buildDir  string
}

// New returns a planner for the given configuration. cross may be nil
// for native builds.
func New(cfg *buildcfg.CMake, cross *buildcfg.Cross, sourceDir, buildDir string) *Planner {
	return &Planner{cfg: cfg, cross: cross, sourceDir: sourceDir, buildDir: buildDir}
}

// ConfigureArgs returns the arguments of the configuration step.
func (p *Planner) ConfigureArgs() []string {
	var args []string
	if p.cfg.Preset != "" {
		args = append(args, "--preset", p.cfg.Preset)
	} else {
		args = append(args, "-S", p.sourceDir, "-B", p.buildDir)
	}
	if p.cfg.Generator != "" {
		args = append(args, "-G", p.cfg.Generator)
	}
	if p.cross != nil && p.cross.GeneratorPlatform != "" {
		args = append(args, "-A", p.cross.GeneratorPlatform)
	}
	if p.cross != nil && p.cross.ToolchainFile != "" {
		args = append(args, "-D", "CMAKE_TOOLCHAIN_FILE="+p.cross.ToolchainFile)
	}
	if p.cfg.BuildType != "" {
		args = append(args, "-D", "CMAKE_BUILD_TYPE="+p.cfg.BuildType)
	}
	for _, k := range sortedKeys(p.cfg.Options) {
		args = append(args, "-D", k+"="+p.cfg.Options[k])
	}
	return append(args, p.cfg.Args...)
}

// BuildArgs returns the arguments of one build step. config may be empty
// for single-configuration generators. Build tool arguments go after the
// "--" separator.
func (p *Planner) BuildArgs(config string) []string {
	args := []string{"--build", p.buildDir}
	if config != "" {
		args = append(args, "--config", config)
	}
	args = append(args, p.cfg.BuildArgs...)
	if len(p.cfg.BuildToolArgs) > 0 {
		args = append(args, "--")
		args = append(args, p.cfg.BuildToolArgs...)
	}
	return args
}

// InstallArgs returns the arguments of one install step. An empty
// component selects the default component.
func (p *Planner) InstallArgs(config, component, prefix string) []string {
	args := []string{"--install", p.buildDir}
	if config != "" {
		args = append(args, "--config", config)
	}
	if component != "" {
		args = append(args, "--component", component)
	}
	if prefix != "" {
		args = append(args, "--prefix", prefix)
	}
	return append(args, p.cfg.InstallArgs...)
}

// Environment overlays the configured environment variables onto base
// (a slice of KEY=VALUE entries, as returned by os.Environ).
func (p *Planner) Environment(base []string) []string {
	if len(p.cfg.Env) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(p.cfg.Env))
	replaced := map[string]bool{}
	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if ok {
			if v, set := p.cfg.Env[key]; set {
				out = append(out, key+"="+v)
				replaced[key] = true
				continue
			}
		}
		out = append(out, entry)
	}
	for _, k := range sortedKeys(p.cfg.Env) {
		if !replaced[k] {
			out = append(out, k+"="+p.cfg.Env[k])
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
