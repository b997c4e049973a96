//go:build linux || darwin || freebsd || netbsd || openbsd

package printer

import "golang.org/x/sys/unix"

func osVersion() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return unix.ByteSliceToString(u.Sysname[:]) + " " + unix.ByteSliceToString(u.Release[:])
}
