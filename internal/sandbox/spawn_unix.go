//go:build !windows

package sandbox

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func detachAttr() *syscall.SysProcAttr { return &syscall.SysProcAttr{Setsid: true} }

func isExecutable(p string) bool { return unix.Access(p, unix.X_OK) == nil }
