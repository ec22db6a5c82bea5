//go:build linux

package thermal

import (
	"testing"
	"unsafe"
)

func TestReadMessages(t *testing.T) {
	var reg [2]byte
	buf := make([]byte, 2*768)
	msgs := readMessages(0x33, regRAM, &reg, buf)

	if reg != [2]byte{0x04, 0x00} {
		t.Errorf("register bytes = % x, want 04 00", reg)
	}
	w, r := msgs[0], msgs[1]
	if w.addr != 0x33 || w.flags != 0 || w.length != 2 || w.buf != unsafe.Pointer(&reg[0]) {
		t.Errorf("write message = %+v", w)
	}
	if r.addr != 0x33 || r.flags != i2cMsgRead || int(r.length) != len(buf) || r.buf != unsafe.Pointer(&buf[0]) {
		t.Errorf("read message = %+v", r)
	}
}

func TestI2CMsgLayout(t *testing.T) {
	// struct i2c_msg: three __u16 then a pointer aligned to its size.
	var m i2cMsg
	ptr := unsafe.Sizeof(uintptr(0))
	if off := unsafe.Offsetof(m.buf); off != 8 {
		t.Errorf("buf offset = %d, want 8", off)
	}
	if size := unsafe.Sizeof(m); size != 8+ptr {
		t.Errorf("i2cMsg size = %d, want %d", size, 8+ptr)
	}
}
