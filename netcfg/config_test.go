package netcfg

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConfigurer struct {
	mac     net.HardwareAddr
	ip      net.IP
	mask    net.IPMask
	gateway net.IP
}

func (r *recordingConfigurer) SetMACAddress(_ context.Context, mac net.HardwareAddr) error {
	r.mac = mac
	return nil
}

func (r *recordingConfigurer) SetNetConfig(_ context.Context, ip net.IP, mask net.IPMask, gateway net.IP) error {
	r.ip = ip
	r.mask = mask
	r.gateway = gateway
	return nil
}

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mac: de:ad:be:ef:fe:ed
ip: 192.0.2.10
subnet: 255.255.0.0
gateway: 192.0.2.1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	var rec recordingConfigurer
	require.NoError(t, cfg.Apply(context.Background(), &rec))

	assert.Equal(t, "de:ad:be:ef:fe:ed", rec.mac.String())
	assert.True(t, rec.ip.Equal(net.IPv4(192, 0, 2, 10)))
	assert.Equal(t, net.IPv4Mask(255, 255, 0, 0), rec.mask)
	assert.True(t, rec.gateway.Equal(net.IPv4(192, 0, 2, 1)))
}

func TestApply_Defaults(t *testing.T) {
	cfg := &Config{IP: "10.0.0.5"}

	var rec recordingConfigurer
	require.NoError(t, cfg.Apply(context.Background(), &rec))

	assert.Nil(t, rec.mac)
	assert.Equal(t, net.IPv4Mask(255, 255, 255, 0), rec.mask)
	assert.Nil(t, rec.gateway)
}

func TestApply_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad mac", Config{MAC: "nope", IP: "10.0.0.5"}},
		{"missing ip", Config{}},
		{"bad subnet", Config{IP: "10.0.0.5", Subnet: "nope"}},
		{"bad gateway", Config{IP: "10.0.0.5", Gateway: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recordingConfigurer
			assert.Error(t, tt.cfg.Apply(context.Background(), &rec))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
