package listcard

import (
	"bytes"
	"errors"
	"testing"
)

func TestSanitizeRemovesFramingBytes(t *testing.T) {
	in := []byte{0x01, telStart, 0x02, telEnd, escapeByte, 0xFF}
	out := sanitize(in)
	if bytes.IndexByte(out, telStart) >= 0 || bytes.IndexByte(out, telEnd) >= 0 {
		t.Errorf("sanitized data %X still holds framing bytes", out)
	}
	if back := reverseSanitize(out); !bytes.Equal(back, in) {
		t.Errorf("expected %X after reverse sanitizing, got %X", in, back)
	}
}

func TestEncodeDecode(t *testing.T) {
	tele := Telegram{Op: OpJump, Data: payload(int32(-10), int32(0x0A0D))}
	frame := Encode(tele)
	if bytes.IndexByte(frame[1:], telStart) >= 0 || bytes.IndexByte(frame, telEnd) >= 0 {
		t.Fatalf("frame %X holds a framing byte in its body", frame)
	}
	got, err := Decode(append([]byte{0xFF}, append(frame, telEnd)...))
	if err != nil {
		t.Fatal(err)
	}
	if got.Op != tele.Op || !bytes.Equal(got.Data, tele.Data) {
		t.Errorf("expected %v %X, got %v %X", tele.Op, tele.Data, got.Op, got.Data)
	}
	rd := reader{buf: got.Data}
	if x, y := rd.i32(), rd.i32(); x != -10 || y != 0x0A0D || rd.err != nil {
		t.Errorf("payload decoded to %d %d %v", x, y, rd.err)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	frame := Encode(Telegram{Op: OpStatus})
	frame[1] ^= 0x01
	if _, err := Decode(frame); !errors.Is(err, ErrCRC) {
		t.Errorf("expected ErrCRC, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0x01, 0x02}); err == nil {
		t.Error("decoded a frame with no start byte")
	}
	if _, err := Decode([]byte{telStart, 0x01}); !errors.Is(err, ErrShortTelegram) {
		t.Errorf("expected ErrShortTelegram, got %v", err)
	}
}

func TestReaderShortPayload(t *testing.T) {
	rd := reader{buf: []byte{1, 2, 3}}
	rd.u32()
	if rd.err != ErrShortTelegram {
		t.Errorf("expected ErrShortTelegram, got %v", rd.err)
	}
}

func TestOpString(t *testing.T) {
	if OpExecuteFrom.String() != "execute from" {
		t.Errorf("got %q", OpExecuteFrom.String())
	}
	if Op(99).String() != "Op(99)" {
		t.Errorf("got %q", Op(99).String())
	}
}
