// Package platform identifies the operating system family the process runs on.
// Only linux and darwin hosts are supported.
package platform

import (
	"fmt"
	"runtime"
)

// Error defines string error
type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrUnsupportedPlatform indicates that the host operating system is neither linux nor darwin
const ErrUnsupportedPlatform = Error("unsupported platform")

// Platform is an operating system family
type Platform string

const (
	Linux  Platform = "linux"
	Darwin Platform = "darwin"
)

var supported = []Platform{Linux, Darwin}

// Supported returns the list of supported platforms
func Supported() []Platform {
	out := make([]Platform, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether p is one of the supported platforms
func (p Platform) IsSupported() bool {
	for _, s := range supported {
		if p == s {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// Detect maps a GOOS value onto a Platform.
func Detect(goos string) (Platform, error) {
	p := Platform(goos)
	if !p.IsSupported() {
		return "", fmt.Errorf("%w: envtools supports linux and darwin only, not %q", ErrUnsupportedPlatform, goos)
	}
	return p, nil
}

// Current detects the platform of the running process.
func Current() (Platform, error) {
	return Detect(runtime.GOOS)
}

// MustCurrent is like Current but panics when the host is not supported.
// It is meant to be called once during program initialization.
func MustCurrent() Platform {
	p, err := Current()
	if err != nil {
		panic(err)
	}
	return p
}
