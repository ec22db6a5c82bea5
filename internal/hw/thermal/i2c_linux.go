//go:build linux

package thermal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cjeanneret/PanTurret/internal/debug"
)

const (
	i2cSlave      = 0x0703 // ioctl: set slave address
	i2cRdwr       = 0x0707 // ioctl: combined transfer
	i2cMsgRead    = 0x0001 // I2C_M_RD
	regStatus     = 0x8000
	regRAM        = 0x0400
	statusNewData = 0x0008
	statusPage    = 0x0001
)

// I2CSource reads raw MLX90640 RAM over a Linux i2c-dev bus. Pixel values
// are the uncalibrated IR words; they are only meaningful relative to each
// other within one frame.
type I2CSource struct {
	f      *os.File
	addr   uint16
	pixels int
}

// i2cMsg and i2cRdwrData mirror struct i2c_msg and struct
// i2c_rdwr_ioctl_data from <linux/i2c-dev.h>.
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	buf    unsafe.Pointer
}

type i2cRdwrData struct {
	msgs  unsafe.Pointer
	nmsgs uint32
}

// readMessages builds a register write followed by a read into buf, sent as
// one transaction with a repeated start.
func readMessages(addr, reg uint16, regBuf *[2]byte, buf []byte) [2]i2cMsg {
	binary.BigEndian.PutUint16(regBuf[:], reg)
	return [2]i2cMsg{
		{addr: addr, length: 2, buf: unsafe.Pointer(&regBuf[0])},
		{addr: addr, flags: i2cMsgRead, length: uint16(len(buf)), buf: unsafe.Pointer(&buf[0])},
	}
}

// NewI2CSource opens bus (e.g. /dev/i2c-1) and selects the sensor address.
func NewI2CSource(bus string, addr, pixels int) (*I2CSource, error) {
	f, err := os.OpenFile(bus, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", bus, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, addr); err != nil {
		f.Close()
		return nil, fmt.Errorf("select i2c address 0x%02x: %w", addr, err)
	}
	debug.Info("thermal sensor on %s @ 0x%02x", bus, addr)
	return &I2CSource{f: f, addr: uint16(addr), pixels: pixels}, nil
}

func (s *I2CSource) readWords(reg uint16, n int) ([]uint16, error) {
	var regBuf [2]byte
	buf := make([]byte, 2*n)
	msgs := readMessages(s.addr, reg, &regBuf, buf)
	data := i2cRdwrData{msgs: unsafe.Pointer(&msgs[0]), nmsgs: uint32(len(msgs))}
	done, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), i2cRdwr, uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return nil, fmt.Errorf("i2c read 0x%04x: %w", reg, errno)
	}
	if int(done) != len(msgs) {
		return nil, fmt.Errorf("i2c read 0x%04x: short transfer (%d of %d messages)", reg, done, len(msgs))
	}
	words := make([]uint16, n)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return words, nil
}

func (s *I2CSource) writeWord(reg, v uint16) error {
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[:2], reg)
	binary.BigEndian.PutUint16(buf[2:], v)
	n, err := s.f.Write(buf[:])
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	return err
}

// HasData reports whether the sensor flagged a new subpage.
func (s *I2CSource) HasData() bool {
	st, err := s.readWords(regStatus, 1)
	if err != nil {
		debug.Errorf("thermal status read: %v", err)
		return false
	}
	return st[0]&statusNewData != 0
}

// ReadSubpage reads the pixel RAM and acknowledges the new-data flag.
func (s *I2CSource) ReadSubpage() (int, []float64, error) {
	st, err := s.readWords(regStatus, 1)
	if err != nil {
		return 0, nil, fmt.Errorf("read status: %w", err)
	}
	raw, err := s.readWords(regRAM, s.pixels)
	if err != nil {
		return 0, nil, fmt.Errorf("read ram: %w", err)
	}
	if err := s.writeWord(regStatus, st[0]&^statusNewData); err != nil {
		return 0, nil, fmt.Errorf("clear status: %w", err)
	}
	data := make([]float64, len(raw))
	for i, w := range raw {
		data[i] = float64(int16(w))
	}
	return int(st[0] & statusPage), data, nil
}

// Close releases the bus.
func (s *I2CSource) Close() error {
	return s.f.Close()
}
