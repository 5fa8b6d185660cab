//go:build !linux

package source

import (
	"fmt"

	"github.com/sgostarter/i/l"
)

// NewI2C — на не-Linux I2C недоступен
func NewI2C(cfg I2CConfig, logger l.Wrapper) (*I2C, error) {
	_ = logger
	return nil, fmt.Errorf("i2c %s: not supported on this platform", cfg.Bus)
}
