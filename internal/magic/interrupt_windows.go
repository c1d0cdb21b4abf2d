//go:build windows

package magic

import "os/exec"

// setProcGroup is a no-op on Windows; there are no unix process groups.
func setProcGroup(cmd *exec.Cmd) {}

// interruptGroup is a no-op on Windows; there is no process-group
// SIGINT to deliver. The subprocess still dies with the kernel's
// context cancellation.
func interruptGroup(pgid int) {}
