package source

import (
	"fmt"
	"time"

	"github.com/sgostarter/i/l"
	"github.com/spf13/cast"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/config"
)

// NewFromConfig создаёт источник из секции source конфига.
// Параметры протокола берутся из options (числа и строки приводятся через cast).
func NewFromConfig(c config.SourceConfig, timeSignal string, logger l.Wrapper) (Source, error) {
	signals, err := toSignals(c)
	if err != nil {
		return nil, err
	}
	opts := options(c.Options)
	switch c.Protocol {
	case "ramp":
		rc := DefaultRampConfig()
		rc.Name = c.Name
		rc.Signals = signals
		rc.TimeSignal = timeSignal
		if rc.StartTime, err = opts.floatOpt("start_time", rc.StartTime); err != nil {
			return nil, err
		}
		if rc.TimeIncrement, err = opts.floatOpt("time_increment", rc.TimeIncrement); err != nil {
			return nil, err
		}
		if rc.IntIncrement, err = opts.floatOpt("int_increment", rc.IntIncrement); err != nil {
			return nil, err
		}
		if rc.FloatIncrement, err = opts.floatOpt("float_increment", rc.FloatIncrement); err != nil {
			return nil, err
		}
		if rc.InitialInt, err = opts.floatOpt("initial_int", rc.InitialInt); err != nil {
			return nil, err
		}
		if rc.InitialFloat, err = opts.floatOpt("initial_float", rc.InitialFloat); err != nil {
			return nil, err
		}
		if rc.MaxSynchronises, err = opts.intOpt("max_synchronises", 0); err != nil {
			return nil, err
		}
		return NewRamp(rc)
	case "serial":
		sc := SerialConfig{Name: c.Name, Signals: signals}
		if sc.Device, err = opts.stringOpt("device", "/dev/ttyS0"); err != nil {
			return nil, err
		}
		if sc.Baud, err = opts.intOpt("baud", 115200); err != nil {
			return nil, err
		}
		if sc.Timeout, err = opts.durationOpt("timeout", defaultSerialTimeout); err != nil {
			return nil, err
		}
		return NewSerial(sc, logger)
	case "i2c":
		ic := I2CConfig{Name: c.Name, Signals: signals, TimeSignal: timeSignal}
		if ic.Bus, err = opts.stringOpt("bus", ""); err != nil {
			return nil, err
		}
		addr, err := opts.intOpt("addr", 0x5f)
		if err != nil {
			return nil, err
		}
		reg, err := opts.intOpt("register", 0)
		if err != nil {
			return nil, err
		}
		ic.Addr, ic.Register = uint16(addr), byte(reg)
		return NewI2C(ic, logger)
	default:
		return nil, fmt.Errorf("unknown protocol: %s", c.Protocol)
	}
}

func toSignals(c config.SourceConfig) ([]broker.Signal, error) {
	out := make([]broker.Signal, 0, len(c.Signals))
	for _, s := range c.Signals {
		sig, err := s.Signal("")
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Name, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

type options map[string]any

func (o options) floatOpt(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return f, nil
}

func (o options) intOpt(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return n, nil
}

func (o options) stringOpt(key, def string) (string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("option %s: %w", key, err)
	}
	return s, nil
}

// durationOpt разбирает строку time.ParseDuration ("250ms"); пусто — def
func (o options) durationOpt(key string, def time.Duration) (time.Duration, error) {
	s, err := o.stringOpt(key, "")
	if err != nil || s == "" {
		return def, err
	}
	d, err := time.ParseDuration(s)
	if err == nil && d <= 0 {
		err = fmt.Errorf("must be positive, got %s", s)
	}
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return d, nil
}
