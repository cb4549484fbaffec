// Package discovery advertises the decoder service on the local network
package discovery

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	SERVICE_TYPE = "_mbedecode._tcp"
	DECODE_PATH  = "/api/v1/decode"
)

// Config holds advertisement settings
type Config struct {
	ServiceName string
	Port        int
	Codecs      []string
	IPs         []net.IP // advertised addresses; local unicast addresses when empty
}

// Advertiser announces one service instance via mDNS
type Advertiser struct {
	config Config
	logger *log.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewAdvertiser creates an advertiser; nothing is sent until Start
func NewAdvertiser(config Config, logger *log.Logger) *Advertiser {
	if logger == nil {
		logger = log.Default()
	}
	return &Advertiser{config: config, logger: logger}
}

// TXTRecords returns the TXT records announced with the service
func (a *Advertiser) TXTRecords() []string {
	txt := []string{"path=" + DECODE_PATH}
	for _, c := range a.config.Codecs {
		txt = append(txt, "codec="+c)
	}
	return txt
}

// Service builds the mDNS zone for the configured instance
func (a *Advertiser) Service() (*mdns.MDNSService, error) {
	ips := a.config.IPs
	if len(ips) == 0 {
		var err error
		if ips, err = localIPs(); err != nil {
			return nil, fmt.Errorf("failed to get local IPs: %w", err)
		}
	}

	return mdns.NewMDNSService(
		a.config.ServiceName,
		SERVICE_TYPE,
		"",
		"",
		a.config.Port,
		ips,
		a.TXTRecords(),
	)
}

// Start begins answering mDNS queries
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	service, err := a.Service()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	a.server = server

	a.logger.Printf("Advertising mDNS service: %s on port %d (type: %s)", a.config.ServiceName, a.config.Port, SERVICE_TYPE)
	return nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}

// localIPs returns the non-loopback IPv4 addresses of interfaces that are up
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					ips = append(ips, ip4)
				}
			}
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interface")
	}
	return ips, nil
}
