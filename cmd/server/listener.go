package server

import (
	"net"
	"os"

	"fleet-keeper/internal/logger"
)

type ListenAddr struct {
	Network string
	Address string
}

/**
 * Create listeners for the daemon API
 * @param {[]ListenAddr} addrs - Listener addresses
 * @returns {[]net.Listener} Array of created listeners
 * @returns {error} Last creation error, listeners already created are closed
 * @description
 * - Removes a stale socket file before listening on a unix address
 * - Fails as a whole so the daemon never serves on a partial set of addresses
 */
func CreateListeners(addrs []ListenAddr) ([]net.Listener, error) {
	var listeners []net.Listener

	for _, addr := range addrs {
		if addr.Network == "unix" {
			if err := os.Remove(addr.Address); err != nil && !os.IsNotExist(err) {
				logger.Errorf("Failed to remove existing socket file: %v", err)
			}
		}
		l, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			logger.Errorf("Failed to create listener on %s://%s: %v", addr.Network, addr.Address, err)
			for _, created := range listeners {
				created.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
