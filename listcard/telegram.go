package listcard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/snksoft/crc"
)

// telegrams are framed as [SOT][BODY][EOT], where BODY is
// [OP] [0..n data bytes] [CRC16, big endian]
// with special characters escaped.  EOT is the transport terminator, so
// Encode and Decode deal in [SOT][BODY] only.

const (
	// telStart is the start of telegram byte
	telStart = 0x0D

	// telEnd is the end of telegram byte
	telEnd = 0x0A

	// escapeByte precedes a shifted special character
	escapeByte = 0x5E

	// escapeShift is added to special characters after an escapeByte.
	// special characters max out at 0x5E, so we will never overflow
	escapeShift = 0x40

	// response status bytes, the first data byte of every reply
	ack  = 3
	nack = 0
)

var (
	// dataOrder is the byte order of the payload
	dataOrder = binary.LittleEndian

	specialChars = []byte{telEnd, telStart, escapeByte}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrCRC is generated when a telegram fails its checksum
	ErrCRC = errors.New("listcard: CRC mismatch, data lost in transmission")

	// ErrShortTelegram is generated when a telegram cannot hold an op and a CRC
	ErrShortTelegram = errors.New("listcard: telegram too short")
)

// Op is the operation code of a telegram; one per device call
type Op byte

// telegram operations
const (
	OpOpen Op = iota + 1
	OpJump
	OpMark
	OpPixels
	OpEnd
	OpExecute
	OpAutoAdvance
	OpExecuteFrom
	OpStatus
	OpWait
	OpRelease
	OpInputPointer
	OpStop
	OpPause
	OpRestart
)

var opNames = map[Op]string{
	OpOpen:         "open",
	OpJump:         "jump",
	OpMark:         "mark",
	OpPixels:       "pixels",
	OpEnd:          "end",
	OpExecute:      "execute",
	OpAutoAdvance:  "auto advance",
	OpExecuteFrom:  "execute from",
	OpStatus:       "status",
	OpWait:         "wait",
	OpRelease:      "release",
	OpInputPointer: "input pointer",
	OpStop:         "stop",
	OpPause:        "pause",
	OpRestart:      "restart",
}

// String satisfies fmt.Stringer
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", byte(o))
}

// Telegram is one request or reply
type Telegram struct {
	Op   Op
	Data []byte
}

func sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escapeByte, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func reverseSanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	subNext := false
	for _, b := range data {
		if b == escapeByte {
			subNext = true
			continue
		}
		if subNext {
			b -= escapeShift
		}
		out = append(out, b)
		subNext = false
	}
	return out
}

// crcHelper computes the two-byte CRC value
func crcHelper(buf []byte) []byte {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, buf)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(c))
	return out
}

// Encode produces [SOT][BODY] for t; the caller appends EOT
func Encode(t Telegram) []byte {
	body := make([]byte, 0, len(t.Data)+3)
	body = append(body, byte(t.Op))
	body = append(body, t.Data...)
	body = append(body, crcHelper(body)...)
	return append([]byte{telStart}, sanitize(body)...)
}

// Decode parses a frame produced by Encode.  Bytes before SOT and a
// trailing EOT are ignored.
func Decode(frame []byte) (Telegram, error) {
	i := bytes.IndexByte(frame, telStart)
	if i < 0 {
		return Telegram{}, fmt.Errorf("listcard: telegram start byte %X not found", telStart)
	}
	frame = bytes.TrimSuffix(frame[i+1:], []byte{telEnd})
	body := reverseSanitize(frame)
	if len(body) < 3 {
		return Telegram{}, ErrShortTelegram
	}
	n := len(body) - 2
	if !bytes.Equal(body[n:], crcHelper(body[:n])) {
		return Telegram{}, ErrCRC
	}
	return Telegram{Op: Op(body[0]), Data: body[1:n]}, nil
}

// payload builds little endian data from uint32, int32 and uint16 values
func payload(vals ...interface{}) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		binary.Write(&buf, dataOrder, v)
	}
	return buf.Bytes()
}

// reader pulls little endian values from a payload in order
type reader struct {
	buf []byte
	err error
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 4 {
		r.err = ErrShortTelegram
		return 0
	}
	v := dataOrder.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 2 {
		r.err = ErrShortTelegram
		return 0
	}
	v := dataOrder.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v
}
