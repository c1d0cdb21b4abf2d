// Package kernelspec registers dinghy with Jupyter.
//
// A kernelspec is a directory holding a kernel.json that tells the
// front-end how to launch the kernel. Installing one under the Jupyter
// data path makes "MicroPython (dinghy)" appear in the kernel picker.
package kernelspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cameronsjo/dinghy/internal/fileutil"
)

// DefaultName is the kernelspec id used unless overridden; multiple
// boards can register side by side under different names.
const DefaultName = "dinghy"

// Spec is the kernel.json document.
type Spec struct {
	Argv          []string          `json:"argv"`
	DisplayName   string            `json:"display_name"`
	Language      string            `json:"language"`
	InterruptMode string            `json:"interrupt_mode"`
	Env           map[string]string `json:"env,omitempty"`
}

// New builds the spec for the given kernel binary. interrupt_mode is
// "message": the front-end sends interrupt_request instead of SIGINT,
// and the kernel forwards Ctrl-C to the board.
func New(binary, displayName string) *Spec {
	return &Spec{
		Argv:          []string{binary, "run", "--connection-file", "{connection_file}"},
		DisplayName:   displayName,
		Language:      "micropython",
		InterruptMode: "message",
		Env: map[string]string{
			"DINGHY_PORT": "${DINGHY_PORT}",
		},
	}
}

// DataDir returns the Jupyter data directory kernelspecs install into.
// JUPYTER_DATA_DIR wins; otherwise the platform user location is used.
func DataDir() (string, error) {
	if dir := os.Getenv("JUPYTER_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Jupyter"), nil
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "jupyter"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "jupyter"), nil
	default:
		return filepath.Join(home, ".local", "share", "jupyter"), nil
	}
}

// Dir returns the kernelspec directory for name under prefix, or under
// the user data dir when prefix is empty.
func Dir(prefix, name string) (string, error) {
	base := prefix
	if base == "" {
		var err error
		base, err = DataDir()
		if err != nil {
			return "", err
		}
	} else {
		base = filepath.Join(base, "share", "jupyter")
	}
	return filepath.Join(base, "kernels", name), nil
}

// Install writes the kernelspec and returns its directory.
func Install(spec *Spec, prefix, name string) (string, error) {
	dir, err := Dir(prefix, name)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal kernel.json: %w", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteFile(filepath.Join(dir, "kernel.json"), data, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// Uninstall removes the kernelspec directory. Missing specs are not an
// error.
func Uninstall(prefix, name string) (string, error) {
	dir, err := Dir(prefix, name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return dir, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("remove kernelspec: %w", err)
	}
	return dir, nil
}
