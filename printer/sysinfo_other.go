//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package printer

import "runtime"

func osVersion() string { return runtime.GOOS }
