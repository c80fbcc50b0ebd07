// Package netcfg is the driver's address-configuration surface: a static
// YAML configuration and the interface an external lease mechanism (e.g. a
// DHCP client) pushes its result through.
package netcfg

import (
	"context"
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Configurer is satisfied by *w5500.Device. A DHCP collaborator applies
// its lease through the same setters a static configuration uses.
type Configurer interface {
	SetMACAddress(ctx context.Context, mac net.HardwareAddr) error
	SetNetConfig(ctx context.Context, ip net.IP, mask net.IPMask, gateway net.IP) error
}

// Config is a static network configuration. Subnet defaults to
// 255.255.255.0 and gateway may be omitted.
type Config struct {
	MAC     string `yaml:"mac"`
	IP      string `yaml:"ip"`
	Subnet  string `yaml:"subnet"`
	Gateway string `yaml:"gateway"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read network config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse network config: %w", err)
	}
	return &cfg, nil
}

// Apply pushes the configuration to the device.
func (c *Config) Apply(ctx context.Context, dev Configurer) error {
	if c.MAC != "" {
		mac, err := net.ParseMAC(c.MAC)
		if err != nil {
			return fmt.Errorf("invalid mac %q: %w", c.MAC, err)
		}
		if err := dev.SetMACAddress(ctx, mac); err != nil {
			return err
		}
	}
	ip := net.ParseIP(c.IP)
	if ip == nil {
		return fmt.Errorf("invalid ip %q", c.IP)
	}
	mask := net.IPv4Mask(255, 255, 255, 0)
	if c.Subnet != "" {
		m := net.ParseIP(c.Subnet)
		if m == nil || m.To4() == nil {
			return fmt.Errorf("invalid subnet %q", c.Subnet)
		}
		mask = net.IPMask(m.To4())
	}
	var gateway net.IP
	if c.Gateway != "" {
		gateway = net.ParseIP(c.Gateway)
		if gateway == nil {
			return fmt.Errorf("invalid gateway %q", c.Gateway)
		}
	}
	return dev.SetNetConfig(ctx, ip, mask, gateway)
}
