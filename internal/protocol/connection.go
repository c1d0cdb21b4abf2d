// Package protocol implements the Jupyter messaging protocol: connection
// files, the wire format with HMAC signing, and the five kernel sockets.
package protocol

import (
	"encoding/json"
	"fmt"
	"os"
)

// SignatureScheme is the only signing scheme the protocol defines.
const SignatureScheme = "hmac-sha256"

// ConnectionInfo is the connection file a Jupyter front-end hands to the
// kernel it launches. Unknown fields are ignored.
type ConnectionInfo struct {
	IP              string `json:"ip"`
	Transport       string `json:"transport"`
	ShellPort       int    `json:"shell_port"`
	ControlPort     int    `json:"control_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	HBPort          int    `json:"hb_port"`
	Key             string `json:"key"`
	SignatureScheme string `json:"signature_scheme"`
}

// ReadConnectionFile parses and validates a connection file.
func ReadConnectionFile(path string) (*ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connection file: %w", err)
	}
	var info ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse connection file: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// Validate checks the fields the kernel depends on. An empty key means
// unsigned mode, in which case the scheme is irrelevant.
func (c *ConnectionInfo) Validate() error {
	if c.IP == "" {
		return fmt.Errorf("connection file: missing ip")
	}
	if c.Transport == "" {
		c.Transport = "tcp"
	}
	if c.Key != "" && c.SignatureScheme != "" && c.SignatureScheme != SignatureScheme {
		return fmt.Errorf("connection file: unsupported signature scheme %q", c.SignatureScheme)
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"shell_port", c.ShellPort},
		{"control_port", c.ControlPort},
		{"iopub_port", c.IOPubPort},
		{"stdin_port", c.StdinPort},
		{"hb_port", c.HBPort},
	} {
		if p.port <= 0 {
			return fmt.Errorf("connection file: missing %s", p.name)
		}
	}
	return nil
}

// Endpoint renders the ZeroMQ endpoint for one of the ports.
func (c *ConnectionInfo) Endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", c.Transport, c.IP, port)
}
