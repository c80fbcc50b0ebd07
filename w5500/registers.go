package w5500

// Common register block.
const (
	regMR       uint16 = 0x0000 // mode
	regGAR      uint16 = 0x0001 // gateway address
	regSUBR     uint16 = 0x0005 // subnet mask
	regSHAR     uint16 = 0x0009 // source hardware address
	regSIPR     uint16 = 0x000F // source IP address
	regPHYCFGR  uint16 = 0x002E // PHY configuration
	regVERSIONR uint16 = 0x0039 // silicon version
)

// Socket register block, offsets relative to the socket's bank.
const (
	regSnMR    uint16 = 0x0000 // mode
	regSnCR    uint16 = 0x0001 // command
	regSnIR    uint16 = 0x0002 // interrupt
	regSnSR    uint16 = 0x0003 // status
	regSnPORT  uint16 = 0x0004 // source port
	regSnDIPR  uint16 = 0x000C // destination IP address
	regSnDPORT uint16 = 0x0010 // destination port
	regSnRXBUF uint16 = 0x001E // RX buffer size (KiB)
	regSnTXBUF uint16 = 0x001F // TX buffer size (KiB)
	regSnTXFSR uint16 = 0x0020 // TX free size
	regSnTXWR  uint16 = 0x0024 // TX write pointer
	regSnRXRSR uint16 = 0x0026 // RX received size
	regSnRXRD  uint16 = 0x0028 // RX read pointer
)

// Socket commands, written to SnCR. The register self-clears once the chip
// has accepted the command.
const (
	cmdOpen       byte = 0x01
	cmdListen     byte = 0x02
	cmdConnect    byte = 0x04
	cmdDisconnect byte = 0x08
	cmdClose      byte = 0x10
	cmdSend       byte = 0x20
	cmdSendMAC    byte = 0x21
	cmdSendKeep   byte = 0x22
	cmdRecv       byte = 0x40
)

// Socket interrupt register bits.
const (
	snirSendOK  byte = 0x10
	snirTimeout byte = 0x08
	snirRecv    byte = 0x04
	snirDiscon  byte = 0x02
	snirCon     byte = 0x01
)

const (
	modeReset     byte = 0x80 // MR reset bit
	versionW5500  byte = 0x04
	phyLinkStatus byte = 0x01 // PHYCFGR bit 0
)

// Mode selects the protocol a socket slot is opened in, written to SnMR.
type Mode byte

const (
	ModeClosed Mode = 0x00
	ModeTCP    Mode = 0x21
	ModeUDP    Mode = 0x02
	ModeIPRaw  Mode = 0x03
	ModeMACRaw Mode = 0x04
	ModePPPoE  Mode = 0x05
)

// Status is the socket state reported by SnSR. The polled value is the
// single source of truth for a slot's lifecycle.
type Status byte

const (
	StatusClosed      Status = 0x00
	StatusInit        Status = 0x13
	StatusListen      Status = 0x14
	StatusSynSent     Status = 0x15
	StatusSynRecv     Status = 0x16
	StatusEstablished Status = 0x17
	StatusFinWait     Status = 0x18
	StatusClosing     Status = 0x1A
	StatusTimeWait    Status = 0x1B
	StatusCloseWait   Status = 0x1C
	StatusLastAck     Status = 0x1D
	StatusUDP         Status = 0x22
	StatusIPRaw       Status = 0x32
	StatusMACRaw      Status = 0x42
	StatusPPPoE       Status = 0x5F
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusInit:
		return "INIT"
	case StatusListen:
		return "LISTEN"
	case StatusSynSent:
		return "SYNSENT"
	case StatusSynRecv:
		return "SYNRECV"
	case StatusEstablished:
		return "ESTABLISHED"
	case StatusFinWait:
		return "FIN_WAIT"
	case StatusClosing:
		return "CLOSING"
	case StatusTimeWait:
		return "TIME_WAIT"
	case StatusCloseWait:
		return "CLOSE_WAIT"
	case StatusLastAck:
		return "LAST_ACK"
	case StatusUDP:
		return "UDP"
	case StatusIPRaw:
		return "IPRAW"
	case StatusMACRaw:
		return "MACRAW"
	case StatusPPPoE:
		return "PPPOE"
	default:
		return "UNKNOWN"
	}
}

// BufferSize is the fixed TX and RX circular buffer size per socket slot.
const BufferSize uint16 = 0x0800

const bufferMask = BufferSize - 1

// Bank layout. Socket registers are replicated at a fixed stride; buffer
// memory is one contiguous bank per socket.
const (
	socketBankBase   uint16 = 0x1000
	socketBankStride uint16 = 0x0100
	txBankBase       uint16 = 0x8000
	rxBankBase       uint16 = 0xC000
)

// Control byte layout: socket index in the top three bits, block select in
// bits 3 and 4, write direction in bit 2.
const (
	ctrlCommonRead  byte = 0x00
	ctrlCommonWrite byte = 0x04
)

func ctrlSocketRead(sock uint8) byte  { return sock<<5 | 0x08 }
func ctrlSocketWrite(sock uint8) byte { return sock<<5 | 0x0C }
func ctrlTXWrite(sock uint8) byte     { return sock<<5 | 0x14 }
func ctrlRXRead(sock uint8) byte      { return sock<<5 | 0x18 }

// socketRegAddr resolves a relative socket register offset to an absolute
// chip address.
func socketRegAddr(sock uint8, offset uint16) uint16 {
	return socketBankBase + uint16(sock)*socketBankStride + offset
}

// txBufAddr and rxBufAddr mask the free-running 16-bit pointer into a
// physical buffer address inside the socket's bank.
func txBufAddr(sock uint8, ptr uint16) uint16 {
	return txBankBase + uint16(sock)*BufferSize + ptr&bufferMask
}

func rxBufAddr(sock uint8, ptr uint16) uint16 {
	return rxBankBase + uint16(sock)*BufferSize + ptr&bufferMask
}
