//go:build !windows

package magic

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcGroup puts the subprocess in its own process group so an
// interrupt reaches the whole pipeline.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptGroup delivers SIGINT to a whole process group, so shell
// pipelines die together.
func interruptGroup(pgid int) {
	_ = unix.Kill(-pgid, unix.SIGINT)
}
