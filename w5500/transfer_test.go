package w5500

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedSocket(t *testing.T) (*Socket, *chipSim) {
	t.Helper()
	dev, sim := newTestDevice(t)
	sock, err := dev.Socket(context.Background())
	require.NoError(t, err)
	require.NoError(t, sock.Connect(context.Background(), net.IPv4(192, 0, 2, 1), 80))
	return sock, sim
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func TestWriteRead_RoundTrip(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()
	data := payload(1000)

	n, err := sock.Write(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint16(1000), sim.regUint16(0, regSnTXWR))

	got, err := sock.Read(ctx, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, uint16(1000), sim.regUint16(0, regSnRXRD))

	// the consumed region was handed back to the chip
	avail, err := sock.Available(ctx)
	require.NoError(t, err)
	assert.Zero(t, avail)
}

func TestWriteRead_PointerWrap(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()
	// straddles both the 16-bit rollover and the 2 KiB bank boundary
	sim.seedPointers(0, 0xFFF8)
	data := payload(16)

	n, err := sock.Write(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, uint16(0x0008), sim.regUint16(0, regSnTXWR),
		"write pointer advances mod 65536, never clamped")

	got, err := sock.Read(ctx, 16)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, uint16(0x0008), sim.regUint16(0, regSnRXRD))
}

func TestWrite_TruncatesToBufferSize(t *testing.T) {
	sock, _ := connectedSocket(t)
	ctx := context.Background()
	data := payload(3000)

	n, err := sock.Write(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, int(BufferSize), n)

	got, err := sock.Read(ctx, 4096)
	require.NoError(t, err)
	assert.Equal(t, data[:BufferSize], got)
}

func TestWrite_ConnectionLostWhileWaitingForSpace(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()

	sim.setFSR(0, 10)
	sim.setStatus(0, StatusClosed)

	n, err := sock.Write(ctx, payload(100))
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Zero(t, n)
}

func TestWrite_SocketClosedBeforeSendComplete(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()

	sim.suppressSend = true
	sim.setStatus(0, StatusClosed)

	n, err := sock.Write(ctx, payload(100))
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Zero(t, n)
	// the slot was closed locally as part of the abort
	assert.Equal(t, StatusClosed, sim.status(0))
}

func TestWrite_ClearsOnlySendCompleteBit(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()

	// a receive interrupt is already pending
	sim.sockRegs[0][regSnIR] |= snirRecv

	_, err := sock.Write(ctx, payload(8))
	require.NoError(t, err)

	assert.Zero(t, sim.sockRegs[0][regSnIR]&snirSendOK, "SEND_OK must be acknowledged")
	assert.NotZero(t, sim.sockRegs[0][regSnIR]&snirRecv, "other pending bits must survive")
}

func TestRead_EndOfStreamVersusWouldBlock(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   error
	}{
		{"established means try later", StatusEstablished, ErrWouldBlock},
		{"close wait means eof", StatusCloseWait, io.EOF},
		{"closed means eof", StatusClosed, io.EOF},
		{"listen means eof", StatusListen, io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sock, sim := connectedSocket(t)
			sim.setStatus(0, tt.status)

			got, err := sock.Read(context.Background(), 128)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)
		})
	}
}

func TestRead_ClampLeavesRemainderBuffered(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()
	data := payload(100)
	sim.preloadRX(0, data)

	head, err := sock.Read(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, data[:10], head)

	rest, err := sock.Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, data[10:], rest)
}

func TestAvailable(t *testing.T) {
	sock, sim := connectedSocket(t)
	ctx := context.Background()

	avail, err := sock.Available(ctx)
	require.NoError(t, err)
	assert.Zero(t, avail)

	sim.preloadRX(0, payload(42))
	avail, err = sock.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, avail)
}
