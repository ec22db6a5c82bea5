//go:build !linux

package thermal

import "fmt"

// I2CSource is only available on Linux.
type I2CSource struct{}

// NewI2CSource always fails outside Linux.
func NewI2CSource(bus string, addr, pixels int) (*I2CSource, error) {
	return nil, fmt.Errorf("i2c thermal sensor not supported on this platform")
}

func (s *I2CSource) HasData() bool { return false }

func (s *I2CSource) ReadSubpage() (int, []float64, error) {
	return 0, nil, fmt.Errorf("i2c thermal sensor not supported on this platform")
}

func (s *I2CSource) Close() error { return nil }
