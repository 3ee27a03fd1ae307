//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// detach makes the child the leader of a new process group so signals can
// target the group as a whole.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the whole process group (negative pid).
func terminate(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// forceKill sends SIGKILL to the whole process group.
func forceKill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
