package w5500

import (
	"context"
	"encoding/binary"
	"fmt"
)

// frameRecord captures one bus transaction for assertions.
type frameRecord struct {
	addr    uint16
	control byte
	write   bool
	n       int
}

// chipSim is a behavioral stand-in for the chip: a register file, the
// command side effects and a loopback between the TX and RX buffer banks
// (SEND moves the transmitted bytes into the same socket's RX buffer).
type chipSim struct {
	common   [0x40]byte
	sockRegs [8][0x30]byte
	txMem    [8][0x800]byte
	rxMem    [8][0x800]byte

	txRD [8]uint16 // chip-internal TX read pointer
	rxWR [8]uint16 // chip-internal RX write pointer

	version       byte
	phy           byte
	resetStuck    bool               // MR reset bit never self-clears
	failOpen      bool               // OPEN leaves the slot CLOSED
	suppressSend  bool               // SEND never raises SEND_OK
	connectScript map[uint8][]Status // statuses served after a CONNECT command
	statusQueue   map[uint8][]Status

	frames []frameRecord
}

func newChipSim() *chipSim {
	s := &chipSim{
		version:       versionW5500,
		phy:           phyLinkStatus,
		connectScript: make(map[uint8][]Status),
		statusQueue:   make(map[uint8][]Status),
	}
	for n := range s.sockRegs {
		s.setFSR(uint8(n), BufferSize)
	}
	return s
}

func (s *chipSim) ReadFrame(_ context.Context, addr uint16, control byte, buf []byte) error {
	s.frames = append(s.frames, frameRecord{addr: addr, control: control, n: len(buf)})
	switch {
	case control == ctrlCommonRead:
		for i := range buf {
			buf[i] = s.readCommon(addr + uint16(i))
		}
	case control&0x1F == 0x08: // socket register block
		sock := control >> 5
		base := socketRegAddr(sock, 0)
		for i := range buf {
			buf[i] = s.readSockReg(sock, addr-base+uint16(i))
		}
	case control&0x1F == 0x18: // RX buffer memory
		sock := control >> 5
		offset := addr - rxBufAddr(sock, 0)
		if int(offset)+len(buf) > len(s.rxMem[sock]) {
			return fmt.Errorf("rx read past bank end: offset %#x len %d", offset, len(buf))
		}
		copy(buf, s.rxMem[sock][offset:])
	default:
		return fmt.Errorf("unexpected read control byte %#04x", control)
	}
	return nil
}

func (s *chipSim) WriteFrame(_ context.Context, addr uint16, control byte, data []byte) error {
	s.frames = append(s.frames, frameRecord{addr: addr, control: control, write: true, n: len(data)})
	switch {
	case control == ctrlCommonWrite:
		for i, b := range data {
			s.writeCommon(addr+uint16(i), b)
		}
	case control&0x1F == 0x0C: // socket register block
		sock := control >> 5
		base := socketRegAddr(sock, 0)
		for i, b := range data {
			s.writeSockReg(sock, addr-base+uint16(i), b)
		}
	case control&0x1F == 0x14: // TX buffer memory
		sock := control >> 5
		offset := addr - txBufAddr(sock, 0)
		if int(offset)+len(data) > len(s.txMem[sock]) {
			return fmt.Errorf("tx write past bank end: offset %#x len %d", offset, len(data))
		}
		copy(s.txMem[sock][offset:], data)
	default:
		return fmt.Errorf("unexpected write control byte %#04x", control)
	}
	return nil
}

func (s *chipSim) readCommon(addr uint16) byte {
	switch addr {
	case regVERSIONR:
		return s.version
	case regPHYCFGR:
		return s.phy
	default:
		return s.common[addr]
	}
}

func (s *chipSim) writeCommon(addr uint16, value byte) {
	if addr == regMR && value&modeReset != 0 {
		if s.resetStuck {
			s.common[regMR] = modeReset
		} else {
			s.common[regMR] = 0x00
		}
		return
	}
	s.common[addr] = value
}

func (s *chipSim) readSockReg(sock uint8, offset uint16) byte {
	if offset == regSnSR {
		if queued := s.statusQueue[sock]; len(queued) > 0 {
			st := queued[0]
			s.statusQueue[sock] = queued[1:]
			s.sockRegs[sock][regSnSR] = byte(st)
		}
	}
	return s.sockRegs[sock][offset]
}

func (s *chipSim) writeSockReg(sock uint8, offset uint16, value byte) {
	if offset == regSnCR {
		s.sockRegs[sock][regSnCR] = 0x00 // self-clears
		s.exec(sock, value)
		return
	}
	if offset == regSnIR {
		// bits written as 1 are cleared
		s.sockRegs[sock][regSnIR] &^= value
		return
	}
	s.sockRegs[sock][offset] = value
}

func (s *chipSim) exec(sock uint8, cmd byte) {
	switch cmd {
	case cmdOpen:
		if s.failOpen {
			s.setStatus(sock, StatusClosed)
			return
		}
		switch Mode(s.sockRegs[sock][regSnMR]) {
		case ModeTCP:
			s.setStatus(sock, StatusInit)
		case ModeUDP:
			s.setStatus(sock, StatusUDP)
		default:
			s.setStatus(sock, StatusClosed)
		}
	case cmdListen:
		s.setStatus(sock, StatusListen)
	case cmdConnect:
		if script := s.connectScript[sock]; len(script) > 0 {
			s.statusQueue[sock] = append(s.statusQueue[sock], script...)
			return
		}
		s.setStatus(sock, StatusEstablished)
	case cmdDisconnect, cmdClose:
		s.setStatus(sock, StatusClosed)
	case cmdSend:
		wr := s.regUint16(sock, regSnTXWR)
		sent := wr - s.txRD[sock]
		for i := uint16(0); i < sent; i++ {
			s.rxMem[sock][(s.rxWR[sock]+i)&bufferMask] = s.txMem[sock][(s.txRD[sock]+i)&bufferMask]
		}
		s.txRD[sock] = wr
		s.rxWR[sock] += sent
		s.setFSR(sock, BufferSize)
		s.setRSR(sock, s.regUint16(sock, regSnRXRSR)+sent)
		if !s.suppressSend {
			s.sockRegs[sock][regSnIR] |= snirSendOK
		}
	case cmdRecv:
		s.setRSR(sock, s.rxWR[sock]-s.regUint16(sock, regSnRXRD))
	}
}

func (s *chipSim) regUint16(sock uint8, offset uint16) uint16 {
	return binary.BigEndian.Uint16(s.sockRegs[sock][offset : offset+2])
}

func (s *chipSim) setRegUint16(sock uint8, offset uint16, value uint16) {
	binary.BigEndian.PutUint16(s.sockRegs[sock][offset:offset+2], value)
}

func (s *chipSim) setFSR(sock uint8, value uint16) { s.setRegUint16(sock, regSnTXFSR, value) }
func (s *chipSim) setRSR(sock uint8, value uint16) { s.setRegUint16(sock, regSnRXRSR, value) }

func (s *chipSim) setStatus(sock uint8, st Status) {
	s.sockRegs[sock][regSnSR] = byte(st)
}

func (s *chipSim) status(sock uint8) Status {
	return Status(s.sockRegs[sock][regSnSR])
}

// seedPointers places both circular buffers at an arbitrary logical
// position, as if the connection had already moved that much data.
func (s *chipSim) seedPointers(sock uint8, ptr uint16) {
	s.setRegUint16(sock, regSnTXWR, ptr)
	s.txRD[sock] = ptr
	s.setRegUint16(sock, regSnRXRD, ptr)
	s.rxWR[sock] = ptr
}

// preloadRX makes data appear as received from the peer.
func (s *chipSim) preloadRX(sock uint8, data []byte) {
	for i, b := range data {
		s.rxMem[sock][(s.rxWR[sock]+uint16(i))&bufferMask] = b
	}
	s.rxWR[sock] += uint16(len(data))
	s.setRSR(sock, s.rxWR[sock]-s.regUint16(sock, regSnRXRD))
}

func (s *chipSim) resetFrames() { s.frames = nil }
