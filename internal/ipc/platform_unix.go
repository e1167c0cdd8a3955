//go:build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"time"
)

// CreatePlatformListener creates a Unix domain socket listener (Linux/macOS).
// A stale socket file from a crashed server is removed first.
func CreatePlatformListener(socketPath string) (net.Listener, error) {
	if err := CleanupSocket(socketPath); err != nil {
		return nil, fmt.Errorf("cleanup socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix: %w", err)
	}

	// Viewers may run as a different user than the server
	if err := os.Chmod(socketPath, 0666); err != nil {
		listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	return listener, nil
}

// ConnectPlatform dials the arena socket
func ConnectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, time.Second)
}

// GetPlatformAddress returns the address string for logging
func GetPlatformAddress(socketPath string) string {
	return socketPath
}
