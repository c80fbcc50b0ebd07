// Package w5500 drives a WIZnet W5500-class TCP/IP offload chip over a
// narrow framed bus. The chip runs its own TCP/UDP stack in silicon; this
// package sequences register reads and writes to manage the fixed pool of
// hardware socket slots and their circular TX/RX buffers.
//
// Typical usage:
//
//	bus, _ := spi.NewBus("")
//	dev := w5500.New(bus)
//	if err := dev.Init(ctx); err != nil { ... }
//	sock, _ := dev.Socket(ctx)
//	_ = sock.Connect(ctx, net.IPv4(192, 0, 2, 1), 80)
//
// The device serializes all bus access internally; the framed transaction
// is not atomic across interruption, so every operation holds the same
// mutex for its full duration.
package w5500

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mklimuk/wiznet"
)

// Variant identifies the detected chip generation. It is fixed after a
// successful Init and drives socket count and bank addressing.
type Variant string

const VariantW5500 Variant = "w5500"

// MaxSockets returns the number of hardware socket slots the variant
// exposes.
func (v Variant) MaxSockets() int {
	if v == VariantW5500 {
		return 8
	}
	return 0
}

type Opts struct {
	// PollInterval is the delay between consecutive status polls.
	PollInterval time.Duration
	// ConnectTimeout bounds the wait for ESTABLISHED during Connect.
	ConnectTimeout time.Duration
	// SendTimeout bounds the TX buffer-space wait and the SEND completion
	// wait during Write.
	SendTimeout time.Duration
	// LocalPort is the source port used when a socket was opened without
	// going through allocation.
	LocalPort uint16
}

type Opt func(*Opts)

func WithPollInterval(interval time.Duration) Opt {
	return func(o *Opts) {
		o.PollInterval = interval
	}
}

func WithConnectTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.ConnectTimeout = timeout
	}
}

func WithSendTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.SendTimeout = timeout
	}
}

func WithLocalPort(port uint16) Opt {
	return func(o *Opts) {
		o.LocalPort = port
	}
}

// Device represents one physical controller. All operations, including the
// socket and transfer methods reached through handles, serialize on the
// device mutex.
type Device struct {
	mx        sync.Mutex
	transport wiznet.BusTransport
	config    Opts
	variant   Variant
	srcPort   uint16 // ephemeral source port counter
}

func New(transport wiznet.BusTransport, opts ...Opt) *Device {
	config := Opts{
		PollInterval:   10 * time.Millisecond,
		ConnectTimeout: 30 * time.Second,
		SendTimeout:    10 * time.Second,
		LocalPort:      50000,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Device{
		transport: transport,
		config:    config,
	}
}

// Init resets the chip, verifies its identity and programs the per-socket
// buffer sizes. It must complete once before any other operation.
func (d *Device) Init(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	if err := d.swReset(ctx); err != nil {
		return err
	}
	// Confirm the mode register accepts known bit patterns before trusting
	// the version probe.
	for _, pattern := range []byte{0x08, 0x10, 0x00} {
		if err := d.writeCommonByte(ctx, regMR, pattern); err != nil {
			return err
		}
		got, err := d.readCommonByte(ctx, regMR)
		if err != nil {
			return err
		}
		if got != pattern {
			return &DetectionError{Register: regMR, Got: got, Want: pattern}
		}
	}
	version, err := d.readCommonByte(ctx, regVERSIONR)
	if err != nil {
		return err
	}
	if version != versionW5500 {
		return &DetectionError{Register: regVERSIONR, Got: version, Want: versionW5500}
	}
	d.variant = VariantW5500

	// 2 KiB TX and RX buffer per socket slot.
	for n := uint8(0); n < uint8(d.variant.MaxSockets()); n++ {
		if err := d.writeSocketByte(ctx, n, regSnRXBUF, byte(BufferSize>>10)); err != nil {
			return err
		}
		if err := d.writeSocketByte(ctx, n, regSnTXBUF, byte(BufferSize>>10)); err != nil {
			return err
		}
	}
	return nil
}

// swReset writes the MR reset bit and polls until it self-clears.
func (d *Device) swReset(ctx context.Context) error {
	if err := d.writeCommonByte(ctx, regMR, modeReset); err != nil {
		return err
	}
	var mr byte
	for attempt := 0; attempt < 10; attempt++ {
		var err error
		mr, err = d.readCommonByte(ctx, regMR)
		if err != nil {
			return err
		}
		if mr == 0x00 {
			return nil
		}
		if err := sleep(ctx, d.config.PollInterval); err != nil {
			return err
		}
	}
	return &DetectionError{Register: regMR, Got: mr, Want: 0x00}
}

// Variant returns the detected chip variant, empty before Init.
func (d *Device) Variant() Variant {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.variant
}

// LinkUp reports physical-layer connectivity. Variants without a readable
// PHY status register report the link as down.
func (d *Device) LinkUp(ctx context.Context) (bool, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.linkUp(ctx)
}

func (d *Device) linkUp(ctx context.Context) (bool, error) {
	if d.variant != VariantW5500 {
		return false, nil
	}
	phy, err := d.readCommonByte(ctx, regPHYCFGR)
	if err != nil {
		return false, err
	}
	return phy&phyLinkStatus != 0, nil
}

// SetMACAddress writes the source hardware address register.
func (d *Device) SetMACAddress(ctx context.Context, mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return fmt.Errorf("w5500: invalid MAC address %q", mac.String())
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeCommon(ctx, regSHAR, mac)
}

func (d *Device) MACAddress(ctx context.Context) (net.HardwareAddr, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	mac := make(net.HardwareAddr, 6)
	if err := d.readCommon(ctx, regSHAR, mac); err != nil {
		return nil, err
	}
	return mac, nil
}

// SetIPAddress writes the source IP register. The chip performs no
// validation of its own.
func (d *Device) SetIPAddress(ctx context.Context, ip net.IP) error {
	ip4, err := toIPv4(ip)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeCommon(ctx, regSIPR, ip4)
}

func (d *Device) IPAddress(ctx context.Context) (net.IP, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	ip := make(net.IP, 4)
	if err := d.readCommon(ctx, regSIPR, ip); err != nil {
		return nil, err
	}
	return ip, nil
}

func (d *Device) SetSubnetMask(ctx context.Context, mask net.IPMask) error {
	if len(mask) != 4 {
		return fmt.Errorf("w5500: invalid subnet mask %q", mask.String())
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeCommon(ctx, regSUBR, mask)
}

func (d *Device) SetGateway(ctx context.Context, gateway net.IP) error {
	ip4, err := toIPv4(gateway)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.writeCommon(ctx, regGAR, ip4)
}

// SetNetConfig applies a full address configuration in one call. This is
// the surface a DHCP collaborator pushes its lease through; a nil gateway
// leaves the gateway register untouched.
func (d *Device) SetNetConfig(ctx context.Context, ip net.IP, mask net.IPMask, gateway net.IP) error {
	ip4, err := toIPv4(ip)
	if err != nil {
		return err
	}
	if len(mask) != 4 {
		return fmt.Errorf("w5500: invalid subnet mask %q", mask.String())
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.writeCommon(ctx, regSIPR, ip4); err != nil {
		return err
	}
	if err := d.writeCommon(ctx, regSUBR, mask); err != nil {
		return err
	}
	if gateway == nil {
		return nil
	}
	gw4, err := toIPv4(gateway)
	if err != nil {
		return err
	}
	return d.writeCommon(ctx, regGAR, gw4)
}

func toIPv4(ip net.IP) (net.IP, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("w5500: %q is not an IPv4 address", ip.String())
	}
	return ip4, nil
}

// --- register access primitives ---

func (d *Device) readFrame(ctx context.Context, addr uint16, control byte, buf []byte) error {
	if err := d.transport.ReadFrame(ctx, addr, control, buf); err != nil {
		return fmt.Errorf("w5500: bus read at %#06x failed: %w", addr, err)
	}
	return nil
}

func (d *Device) writeFrame(ctx context.Context, addr uint16, control byte, data []byte) error {
	if err := d.transport.WriteFrame(ctx, addr, control, data); err != nil {
		return fmt.Errorf("w5500: bus write at %#06x failed: %w", addr, err)
	}
	return nil
}

func (d *Device) readCommon(ctx context.Context, addr uint16, buf []byte) error {
	return d.readFrame(ctx, addr, ctrlCommonRead, buf)
}

func (d *Device) writeCommon(ctx context.Context, addr uint16, data []byte) error {
	return d.writeFrame(ctx, addr, ctrlCommonWrite, data)
}

func (d *Device) readCommonByte(ctx context.Context, addr uint16) (byte, error) {
	var buf [1]byte
	err := d.readCommon(ctx, addr, buf[:])
	return buf[0], err
}

func (d *Device) writeCommonByte(ctx context.Context, addr uint16, value byte) error {
	return d.writeCommon(ctx, addr, []byte{value})
}

func (d *Device) readSocketReg(ctx context.Context, sock uint8, offset uint16, buf []byte) error {
	return d.readFrame(ctx, socketRegAddr(sock, offset), ctrlSocketRead(sock), buf)
}

func (d *Device) writeSocketReg(ctx context.Context, sock uint8, offset uint16, data []byte) error {
	return d.writeFrame(ctx, socketRegAddr(sock, offset), ctrlSocketWrite(sock), data)
}

func (d *Device) readSocketByte(ctx context.Context, sock uint8, offset uint16) (byte, error) {
	var buf [1]byte
	err := d.readSocketReg(ctx, sock, offset, buf[:])
	return buf[0], err
}

func (d *Device) writeSocketByte(ctx context.Context, sock uint8, offset uint16, value byte) error {
	return d.writeSocketReg(ctx, sock, offset, []byte{value})
}

func (d *Device) readSocketUint16(ctx context.Context, sock uint8, offset uint16) (uint16, error) {
	var buf [2]byte
	if err := d.readSocketReg(ctx, sock, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (d *Device) writeSocketUint16(ctx context.Context, sock uint8, offset uint16, value uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	return d.writeSocketReg(ctx, sock, offset, buf[:])
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
