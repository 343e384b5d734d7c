// Package discovery advertises the local dashboard API as an mDNS/DNS-SD
// service so dashboards on the LAN can find the agent without configuration.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the agent registers under.
const ServiceType = "_finsight._tcp"

// Service manages mDNS service registration.
type Service struct {
	instance string
	port     int
	txt      []string
	log      *slog.Logger
}

// New creates a Service advertising instance on port with the given TXT
// records.
func New(instance string, port int, txt []string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{instance: instance, port: port, txt: txt, log: log}
}

// TXT builds the TXT records describing this agent.
func TXT(version, backendURL string) []string {
	return []string{"version=" + version, "backend=" + backendURL, "path=/api"}
}

// PortOf extracts the port from a listen address such as ":8080" or
// "127.0.0.1:8080".
func PortOf(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("listen address %q has no usable port", listen)
	}
	return port, nil
}

// Start registers the service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.instance,  // instance name
		ServiceType, // service type
		"local.",    // domain
		s.port,      // port
		s.txt,       // TXT records
		nil,         // ifaces, nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.log.Info("discovery: registered mDNS service", "name", s.instance, "port", s.port, "txt", s.txt)

	<-ctx.Done()

	server.Shutdown()
	s.log.Info("discovery: mDNS service unregistered")
	return nil
}
