// Package config — конфигурация sigbroker: источник данных, функция-потребитель,
// брокер с интерполяцией и цикл исполнения. Формат YAML; неизвестные ключи игнорируются.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

// Config — конфигурация sigbroker
type Config struct {
	Cycle    CycleConfig    `yaml:"cycle"`
	Broker   BrokerConfig   `yaml:"broker"`
	Source   SourceConfig   `yaml:"source"`
	Function FunctionConfig `yaml:"function"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// CycleConfig — период цикла функции и число циклов (0 — до остановки)
type CycleConfig struct {
	Interval string `yaml:"interval" validate:"required"`
	Count    int    `yaml:"count" validate:"gte=0"`
}

// BrokerConfig — параметры интерполирующего брокера
type BrokerConfig struct {
	// InterpolationPeriod — шаг виртуального времени за цикл, в единицах сигнала времени
	InterpolationPeriod float64 `yaml:"interpolation_period" validate:"gt=0"`
	// MaxResyncs — предел Synchronise за цикл; 0 = broker.DefaultMaxResyncs
	MaxResyncs int    `yaml:"max_resyncs" validate:"gte=0"`
	TimeSignal string `yaml:"time_signal" validate:"required"`
}

// SourceConfig — источник данных (protocol: ramp, serial, i2c)
type SourceConfig struct {
	Name     string         `yaml:"name" validate:"required"`
	Protocol string         `yaml:"protocol" validate:"required,oneof=ramp serial i2c"`
	Options  map[string]any `yaml:"options"`
	Signals  []SignalConfig `yaml:"signals" validate:"required,min=1,dive"`
}

// SignalConfig — один сигнал
type SignalConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Type     string `yaml:"type" validate:"required,sigtype"`
	Elements int    `yaml:"elements" validate:"gte=0"`
}

// FunctionConfig — функция-потребитель; пустой inputs = все сигналы источника, кроме времени
type FunctionConfig struct {
	Name   string         `yaml:"name" validate:"required"`
	Inputs []SignalConfig `yaml:"inputs" validate:"dive"`
}

// MetricsConfig — адрес HTTP для Prometheus; пусто — выключено
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig — вывод логов
type LogConfig struct {
	Quiet bool `yaml:"quiet"`
	Debug bool `yaml:"debug"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("sigtype", validateSignalType)
}

// validateSignalType принимает только имена десяти поддерживаемых типов
func validateSignalType(fl validator.FieldLevel) bool {
	_, err := typedesc.Parse(fl.Field().String())
	return err == nil
}

// Default возвращает конфиг по умолчанию: ramp-источник испытательного стенда
func Default() *Config {
	return &Config{
		Cycle: CycleConfig{
			Interval: "10ms",
		},
		Broker: BrokerConfig{
			InterpolationPeriod: 2,
			MaxResyncs:          broker.DefaultMaxResyncs,
			TimeSignal:          "Time",
		},
		Source: SourceConfig{
			Name:     "Drv1",
			Protocol: "ramp",
			Signals: []SignalConfig{
				{Name: "Time", Type: "uint64"},
				{Name: "SignalUInt8", Type: "uint8"},
				{Name: "SignalInt32", Type: "int32"},
				{Name: "SignalFloat32", Type: "float32"},
				{Name: "SignalFloat64", Type: "float64"},
			},
		},
		Function: FunctionConfig{
			Name: "GAMA",
		},
	}
}

// Load читает конфиг из YAML, подставляет значения по умолчанию и проверяет его
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML конфига
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyDefaults заполняет пустые поля значениями Default()
func ApplyDefaults(c *Config) {
	d := Default()
	if c.Cycle.Interval == "" {
		c.Cycle.Interval = d.Cycle.Interval
	}
	if c.Broker.InterpolationPeriod == 0 {
		c.Broker.InterpolationPeriod = d.Broker.InterpolationPeriod
	}
	if c.Broker.MaxResyncs == 0 {
		c.Broker.MaxResyncs = d.Broker.MaxResyncs
	}
	if c.Broker.TimeSignal == "" {
		c.Broker.TimeSignal = d.Broker.TimeSignal
	}
	if c.Source.Protocol == "" {
		c.Source.Protocol = d.Source.Protocol
	}
	if c.Source.Name == "" {
		c.Source.Name = d.Source.Name
	}
	if len(c.Source.Signals) == 0 && c.Source.Protocol == "ramp" {
		c.Source.Signals = d.Source.Signals
	}
	if c.Function.Name == "" {
		c.Function.Name = d.Function.Name
	}
	if len(c.Function.Inputs) == 0 {
		for _, s := range c.Source.Signals {
			if s.Name != c.Broker.TimeSignal {
				c.Function.Inputs = append(c.Function.Inputs, s)
			}
		}
	}
}

// Validate проверяет теги и связи между секциями
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.ParseDuration(c.Cycle.Interval); err != nil {
		return fmt.Errorf("invalid config: cycle.interval: %w", err)
	}
	declared := make(map[string]bool, len(c.Source.Signals))
	for _, s := range c.Source.Signals {
		if declared[s.Name] {
			return fmt.Errorf("invalid config: duplicate source signal %q", s.Name)
		}
		declared[s.Name] = true
	}
	if !declared[c.Broker.TimeSignal] {
		return fmt.Errorf("invalid config: time signal %q not declared in source %s", c.Broker.TimeSignal, c.Source.Name)
	}
	if len(c.Function.Inputs) == 0 {
		return errors.New("invalid config: function has no inputs")
	}
	for _, s := range c.Function.Inputs {
		if !declared[s.Name] {
			return fmt.Errorf("invalid config: input %q not declared in source %s", s.Name, c.Source.Name)
		}
	}
	return nil
}

// Interval возвращает период цикла (1s при ошибке разбора)
func (c *Config) Interval() time.Duration {
	return parseInterval(c.Cycle.Interval)
}

// SourceSignals возвращает сигналы источника
func (c *Config) SourceSignals() ([]broker.Signal, error) {
	return toSignals(c.Source.Signals, "")
}

// FunctionInputs возвращает входные сигналы функции, привязанные к источнику
func (c *Config) FunctionInputs() ([]broker.Signal, error) {
	return toSignals(c.Function.Inputs, c.Source.Name)
}

// Signal переводит описание из конфига в broker.Signal
func (s SignalConfig) Signal(dataSource string) (broker.Signal, error) {
	t, err := typedesc.Parse(s.Type)
	if err != nil {
		return broker.Signal{}, fmt.Errorf("signal %q: %w", s.Name, err)
	}
	return broker.Signal{Name: s.Name, DataSource: dataSource, Type: t, Elements: s.Elements}, nil
}

func toSignals(in []SignalConfig, dataSource string) ([]broker.Signal, error) {
	out := make([]broker.Signal, 0, len(in))
	for _, s := range in {
		sig, err := s.Signal(dataSource)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

func parseInterval(s string) time.Duration {
	if s == "" {
		return time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
