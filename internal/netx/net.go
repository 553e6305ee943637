// Package netx has small networking helpers that do not belong to a
// particular transport.
package netx

import "net"

// interfaces is a test seam for net.Interfaces.
var interfaces = net.Interfaces

// HasActiveInterface reports whether the host has at least one interface
// that is up and is not a loopback. It is the "connected" half of the
// connectivity signal; reachability of the backend is probed separately.
func HasActiveInterface() (bool, error) {
	ifaces, err := interfaces()
	if err != nil {
		return false, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}
