// Package preflight provides pre-flight validation for binaries and
// system state the kernel depends on.
package preflight

import (
	"os/exec"
)

// BinaryCheck represents a binary and its purpose.
type BinaryCheck struct {
	Name        string
	Required    bool   // false = warning only
	InstallHint string // e.g., "pip install mpremote"
}

// optionalBinaries enhance dinghy but are not strictly required; the
// kernel itself speaks to the board over serial with no helpers.
var optionalBinaries = []BinaryCheck{
	{
		Name:        "mpremote",
		Required:    false,
		InstallHint: "Install mpremote (needed for %mip): pip install mpremote",
	},
	{
		Name:        "jupyter",
		Required:    false,
		InstallHint: "Install Jupyter: pip install notebook",
	},
}

// CheckOptionalBinaries returns the optional binaries missing from PATH.
func CheckOptionalBinaries() []BinaryCheck {
	var missing []BinaryCheck
	for _, bin := range optionalBinaries {
		if _, err := exec.LookPath(bin.Name); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// IsBinaryAvailable checks if a specific binary is available in PATH.
func IsBinaryAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// CheckAll performs all pre-flight checks. Nothing dinghy needs is a
// hard error, so everything comes back as warnings.
func CheckAll() (warnings []string, errors []string) {
	for _, bin := range CheckOptionalBinaries() {
		warnings = append(warnings, bin.Name+": "+bin.InstallHint)
	}
	return warnings, errors
}
