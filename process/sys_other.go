//go:build !unix

package process

import (
	"os"
	"os/exec"
)

// Platforms without POSIX process groups fall back to single-process
// termination; helper processes are the job of the platform's own job
// control.

func detach(*exec.Cmd) {}

func terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(os.Interrupt)
}

func forceKill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
