package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sgostarter/i/l"

	"github.com/shiwa/sigbroker/internal/frame"
	"github.com/shiwa/sigbroker/pkg/broker"
)

const (
	defaultSerialTimeout = 500 * time.Millisecond
	serialReadTimeout    = 200 * time.Millisecond
	// пауза после пустого чтения, чтобы канал без таймаута не крутил цикл
	serialIdlePause = 5 * time.Millisecond
)

// SerialConfig — параметры источника по последовательному порту
type SerialConfig struct {
	Name    string
	Device  string
	Baud    int
	Signals []broker.Signal
	// Timeout — сколько Synchronise ждёт нового кадра
	Timeout time.Duration
}

// frameReader — то, что нужно источнику от порта (frame.Port)
type frameReader interface {
	ReadFrame(timeout time.Duration) ([]byte, error)
	Close() error
}

// Serial — источник, получающий кадры отсчётов по последовательному порту.
// Фоновая горутина держит последний принятый кадр; Synchronise ждёт кадр
// новее уже выданного и копирует его в память сигналов.
// Payload кадра — блок памяти сигналов в порядке их объявления.
type Serial struct {
	name    string
	device  string
	port    frameReader
	block   *signalBlock
	timeout time.Duration
	logger  l.Wrapper

	mu        sync.Mutex
	latest    []byte
	latestSeq uint64
	have      bool
	issuedSeq uint64
	issued    bool
	frameErr  error
	readErr   error
	closed    bool
	status    Status

	updates chan struct{}
	done    chan struct{}
}

// NewSerial открывает порт и запускает приём кадров
func NewSerial(cfg SerialConfig, logger l.Wrapper) (*Serial, error) {
	if cfg.Device == "" {
		cfg.Device = "/dev/ttyS0"
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	port, err := frame.Open(cfg.Device, cfg.Baud, serialReadTimeout)
	if err != nil {
		return nil, err
	}
	s, err := newSerial(cfg, port, logger)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

func newSerial(cfg SerialConfig, port frameReader, logger l.Wrapper) (*Serial, error) {
	if cfg.Name == "" {
		cfg.Name = "serial"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSerialTimeout
	}
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}
	block, err := newSignalBlock(cfg.Signals)
	if err != nil {
		return nil, fmt.Errorf("serial %s: %w", cfg.Name, err)
	}
	s := &Serial{
		name:    cfg.Name,
		device:  cfg.Device,
		port:    port,
		block:   block,
		timeout: cfg.Timeout,
		logger:  logger.WithFields(l.StringField(l.ClsKey, "serialSource"), l.StringField("source", cfg.Name)),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Serial) readLoop() {
	defer close(s.done)
	for {
		packet, err := s.port.ReadFrame(serialReadTimeout)
		if err == nil && frame.IsSample(packet) {
			err = s.accept(packet)
		}
		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			// tarm/serial (VMIN=0, VTIME) отдаёт пустое чтение как EOF: линия
			// молчит, недочитанный кадр отбрасывается, ждём следующий sync
			if s.isClosed() {
				return
			}
			time.Sleep(serialIdlePause)
		case errors.Is(err, frame.ErrChecksum):
			s.logger.WithFields(l.ErrorField(err)).Warn("frame dropped")
		default:
			s.mu.Lock()
			closed := s.closed
			if !closed {
				s.readErr = err
			}
			s.mu.Unlock()
			if !closed {
				s.logger.WithFields(l.ErrorField(err)).Error("read failed")
			}
			s.notify()
			return
		}
	}
}

func (s *Serial) accept(packet []byte) error {
	seq, block, err := frame.DecodeSample(packet)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if len(block) != len(s.block.mem) {
		s.frameErr = fmt.Errorf("sample %d: payload %d bytes, expected %d", seq, len(block), len(s.block.mem))
	} else {
		s.latest = append(s.latest[:0], block...)
		s.latestSeq = seq
		s.have = true
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Serial) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Serial) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Name возвращает имя источника
func (s *Serial) Name() string {
	return s.name
}

// Protocol возвращает протокол
func (s *Serial) Protocol() string {
	return "serial"
}

// Signals возвращает сигналы источника
func (s *Serial) Signals() []broker.Signal {
	return s.block.Signals()
}

// SignalMemory возвращает память сигнала
func (s *Serial) SignalMemory(name string) ([]byte, error) {
	return s.block.SignalMemory(name)
}

// Synchronise ждёт (не дольше Timeout) кадр новее последнего выданного и
// копирует его в память сигналов. Кадр с payload не того размера — ошибка.
func (s *Serial) Synchronise() error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if s.have && (!s.issued || s.latestSeq != s.issuedSeq) {
			copy(s.block.mem, s.latest)
			s.issuedSeq, s.issued = s.latestSeq, true
			s.status = StatusLive
			s.mu.Unlock()
			return nil
		}
		err := s.frameErr
		s.frameErr = nil
		if err == nil && s.readErr != nil {
			err = s.readErr
		}
		if err != nil {
			s.status = StatusStale
			s.mu.Unlock()
			return fmt.Errorf("serial %s: %w", s.name, err)
		}
		s.mu.Unlock()

		select {
		case <-s.updates:
		case <-timer.C:
			s.mu.Lock()
			s.status = StatusStale
			s.mu.Unlock()
			return fmt.Errorf("serial %s: no sample within %s", s.name, s.timeout)
		}
	}
}

// Prime ждёт первый кадр, если ни один ещё не был выдан
func (s *Serial) Prime() error {
	s.mu.Lock()
	issued := s.issued
	s.mu.Unlock()
	if issued {
		return nil
	}
	return s.Synchronise()
}

// Status возвращает состояние по последнему Synchronise
func (s *Serial) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close закрывает порт и дожидается остановки приёма
func (s *Serial) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	err := s.port.Close()
	<-s.done
	return err
}
