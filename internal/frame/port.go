package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port — обёртка над последовательным портом (или любым io.ReadWriteCloser) для кадров
type Port struct {
	rw io.ReadWriteCloser
}

// Open открывает последовательный порт
func Open(device string, baud int, readTimeout time.Duration) (*Port, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return &Port{rw: p}, nil
}

// NewPort оборачивает уже открытый канал
func NewPort(rw io.ReadWriteCloser) *Port {
	return &Port{rw: rw}
}

// WriteFrame отправляет готовый кадр
func (p *Port) WriteFrame(packet []byte) error {
	_, err := p.rw.Write(packet)
	return err
}

// readerWithDeadline — интерфейс для установки таймаута чтения (есть у *os.File и net.Conn, нет у tarm/serial).
type readerWithDeadline interface {
	SetReadDeadline(t time.Time) error
}

// ReadFrame читает один кадр (ждёт sync, затем заголовок, затем payload+checksum).
// При несовпадении checksum возвращает кадр и ErrChecksum.
func (p *Port) ReadFrame(timeout time.Duration) ([]byte, error) {
	if rd, ok := p.rw.(readerWithDeadline); ok && timeout > 0 {
		if err := rd.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 0, 512)
	// Читаем до sync
	for {
		var b [1]byte
		if _, err := io.ReadFull(p.rw, b[:]); err != nil {
			return nil, err
		}
		buf = append(buf, b[0])
		if len(buf) >= 2 && buf[len(buf)-2] == Sync1 && buf[len(buf)-1] == Sync2 {
			buf = append(buf[:0], Sync1, Sync2)
			break
		}
		if len(buf) > 2 {
			buf = buf[len(buf)-2:]
		}
	}
	// class, id, length[2]
	header := make([]byte, headerSize-2)
	if _, err := io.ReadFull(p.rw, header); err != nil {
		return nil, err
	}
	buf = append(buf, header...)
	length := uint16(header[2]) | uint16(header[3])<<8
	rest := make([]byte, int(length)+checksumSize)
	if _, err := io.ReadFull(p.rw, rest); err != nil {
		return nil, err
	}
	buf = append(buf, rest...)
	if !VerifyChecksum(buf) {
		return buf, ErrChecksum
	}
	return buf, nil
}

// Close закрывает порт
func (p *Port) Close() error {
	if p.rw == nil {
		return nil
	}
	return p.rw.Close()
}
