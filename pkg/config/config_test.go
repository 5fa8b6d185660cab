package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shiwa/sigbroker/pkg/typedesc"
)

const sample = `
cycle: {interval: 5ms, count: 20}
broker: {interpolation_period: 10, max_resyncs: 16, time_signal: Time}
source:
  name: Drv1
  protocol: ramp
  options: {int_increment: 10, float_increment: 0.4, time_increment: 5, start_time: 5}
  signals:
    - {name: Time, type: uint64}
    - {name: SignalUInt8, type: uint8, elements: 3}
    - {name: SignalFloat, type: float}
function:
  name: GAMA
metrics: {listen: ":9108"}
log: {quiet: true}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigbroker.yml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Interval() != 5*time.Millisecond {
		t.Errorf("interval = %v", c.Interval())
	}
	if c.Cycle.Count != 20 || c.Broker.InterpolationPeriod != 10 || c.Broker.MaxResyncs != 16 {
		t.Errorf("cycle/broker = %+v %+v", c.Cycle, c.Broker)
	}
	if !c.Log.Quiet || c.Metrics.Listen != ":9108" {
		t.Errorf("log/metrics = %+v %+v", c.Log, c.Metrics)
	}
	// inputs по умолчанию: все сигналы источника, кроме времени
	inputs, err := c.FunctionInputs()
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 2 {
		t.Fatalf("inputs = %+v", inputs)
	}
	if inputs[0].Name != "SignalUInt8" || inputs[0].Type != typedesc.Uint8 || inputs[0].Elements != 3 || inputs[0].DataSource != "Drv1" {
		t.Errorf("inputs[0] = %+v", inputs[0])
	}
	if inputs[1].Type != typedesc.Float32 {
		t.Errorf("inputs[1] = %+v", inputs[1])
	}
	if got := c.Source.Options["time_increment"]; got != 5 {
		t.Errorf("options.time_increment = %v (%T)", got, got)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("source: {name: R}\n"))
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.Broker.InterpolationPeriod != d.Broker.InterpolationPeriod || c.Broker.TimeSignal != "Time" {
		t.Errorf("broker = %+v", c.Broker)
	}
	if c.Source.Protocol != "ramp" || len(c.Source.Signals) != len(d.Source.Signals) {
		t.Errorf("source = %+v", c.Source)
	}
	if len(c.Function.Inputs) != len(d.Source.Signals)-1 {
		t.Errorf("inputs = %+v", c.Function.Inputs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"unknown type", "source: {signals: [{name: Time, type: uint64}, {name: A, type: bool}]}", "sigtype"},
		{"negative period", "broker: {interpolation_period: -1}", "gt"},
		{"unknown protocol", "source: {protocol: can}", "oneof"},
		{"time signal missing", "broker: {time_signal: T}\nsource: {protocol: serial, signals: [{name: A, type: int8}]}", "time signal"},
		{"input not declared", "function: {inputs: [{name: B, type: int8}]}", "not declared"},
		{"bad interval", "cycle: {interval: fast}", "cycle.interval"},
		{"duplicate signal", "source: {signals: [{name: Time, type: uint64}, {name: Time, type: uint64}]}", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}
