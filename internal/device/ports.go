package device

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port visible on the host.
type PortInfo struct {
	Device       string
	VID          string
	PID          string
	SerialNumber string
	Product      string
	IsUSB        bool
	Vendor       string // recognized board vendor, empty if unknown
}

// knownVendors maps USB vendor IDs to the MicroPython board families
// commonly shipped with them. Ordering of preference lives in vendorRank.
var knownVendors = map[string]string{
	"F055": "MicroPython",
	"2E8A": "Raspberry Pi",
	"303A": "Espressif",
	"10C4": "Silicon Labs",
	"1A86": "WCH",
	"0403": "FTDI",
}

var vendorRank = []string{"F055", "2E8A", "303A", "10C4", "1A86", "0403"}

// ListPorts enumerates serial ports. With all=false only USB ports are
// returned, which filters out pseudo-terminals and onboard UARTs.
func ListPorts(all bool) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var ports []PortInfo
	for _, d := range details {
		if !d.IsUSB && !all {
			continue
		}
		p := PortInfo{
			Device:       d.Name,
			VID:          strings.ToUpper(d.VID),
			PID:          strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
			IsUSB:        d.IsUSB,
		}
		p.Vendor = knownVendors[p.VID]
		ports = append(ports, p)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return rankPort(ports[i]) < rankPort(ports[j])
	})
	return ports, nil
}

// rankPort orders candidate ports for autodetection: recognized
// MicroPython vendors first, then any other USB serial device.
func rankPort(p PortInfo) int {
	for i, vid := range vendorRank {
		if p.VID == vid {
			return i
		}
	}
	if p.IsUSB {
		return len(vendorRank)
	}
	return len(vendorRank) + 1
}

// Autodetect returns the best-ranked USB serial port.
func Autodetect() (string, error) {
	ports, err := ListPorts(false)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPort
	}
	return ports[0].Device, nil
}

// openSerial opens the named port at the given baud rate.
func openSerial(port string, baud int) (Conn, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	return p, nil
}
