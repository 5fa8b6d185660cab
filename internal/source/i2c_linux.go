//go:build linux

package source

import (
	"fmt"

	"github.com/sgostarter/i/l"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// NewI2C открывает шину через periph и создаёт источник
func NewI2C(cfg I2CConfig, logger l.Wrapper) (*I2C, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}
	if _, err := driverreg.Init(); err != nil {
		logger.WithFields(l.ErrorField(err)).Warn("driverreg.Init (periph) skipped")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("i2creg.Open %s: %w", cfg.Bus, err)
	}
	dev := &i2c.Dev{Addr: cfg.Addr, Bus: bus}
	d, err := newI2C(cfg, dev, bus.Close, nil)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return d, nil
}
