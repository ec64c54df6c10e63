// Package platform describes the build platform and the cross-compilation
// target as far as configuration resolution needs them.
package platform

import (
	"runtime"
)

// Platform carries the externally-derived facts the resolver depends on:
// which OS-specific section applies, whether the build is a
// cross-compilation, and the path list separator used by the
// AppendPath/PrependPath operators.
type Platform struct {
	// OS is the OS-specific section name: "linux", "windows" or "mac".
	OS string
	// CrossCompiling selects the cross-compilation tiers of resolution.
	CrossCompiling bool
	// PathListSeparator joins path-style strings, ":" or ";".
	PathListSeparator string
}

// Detect returns the Platform of the machine running the build.
func Detect() Platform {
	p := Platform{PathListSeparator: ":"}
	switch runtime.GOOS {
	case "windows":
		p.OS = "windows"
		p.PathListSeparator = ";"
	case "darwin":
		p.OS = "mac"
	default:
		p.OS = "linux"
	}
	return p
}

// Valid reports whether name is a recognized OS section name.
func Valid(name string) bool {
	switch name {
	case "linux", "windows", "mac":
		return true
	default:
		return false
	}
}
