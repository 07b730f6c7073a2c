package artnet

import (
	"fmt"
	"net"
)

// FindArtNetIP finds the matching interface with an IP address inside addressRange.
func FindArtNetIP(addressRange string) (net.IP, error) {
	_, cidrNet, err := net.ParseCIDR(addressRange)
	if err != nil {
		return nil, fmt.Errorf("bad address range %q: %w", addressRange, err)
	}
	address, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}
	return matchIP(address, cidrNet), nil
}

func matchIP(address []net.Addr, cidrNet *net.IPNet) net.IP {
	for _, addr := range address {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil {
			continue
		}
		if cidrNet.Contains(ip) {
			return ip
		}
	}
	return nil
}
