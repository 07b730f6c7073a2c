//go:build !unix

package transport

import "syscall"

// Go enables SO_BROADCAST on every UDP socket it opens, nothing else is set here.
func control(_, _ string, _ syscall.RawConn) error {
	return nil
}
