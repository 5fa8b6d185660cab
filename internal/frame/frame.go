// Package frame — кадры отсчётов для последовательного канала:
// sync (2 байта), class, id, длина payload (LE uint16), payload, контрольная
// сумма Флетчера (2 байта) по всему кроме sync.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sync bytes кадра
const (
	Sync1 = 0xA5
	Sync2 = 0x5A
)

// Классы и ID сообщений
const (
	ClassData = 0x10
	IDSample  = 0x01 // seq (LE uint64) + блок памяти сигналов
)

const (
	headerSize   = 6
	checksumSize = 2
	// MaxPayload — предел длины payload (поле длины 16 бит)
	MaxPayload = 0xFFFF
)

// ErrChecksum — контрольная сумма кадра не сошлась
var ErrChecksum = errors.New("frame checksum mismatch")

// Header — заголовок кадра (6 байт)
type Header struct {
	Class  uint8
	ID     uint8
	Length uint16
}

// Checksum вычисляет контрольную сумму (без sync bytes)
func Checksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Encode собирает кадр: header + payload + checksum
func Encode(class, id uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("frame payload %d bytes exceeds %d", len(payload), MaxPayload)
	}
	buf := make([]byte, 0, headerSize+len(payload)+checksumSize)
	buf = append(buf, Sync1, Sync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	ckA, ckB := Checksum(buf[2:])
	buf = append(buf, ckA, ckB)
	return buf, nil
}

// ParseHeader парсит заголовок из буфера (минимум 6 байт)
func ParseHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < headerSize || buf[0] != Sync1 || buf[1] != Sync2 {
		return Header{}, false
	}
	h.Class = buf[2]
	h.ID = buf[3]
	h.Length = binary.LittleEndian.Uint16(buf[4:6])
	return h, true
}

// VerifyChecksum проверяет контрольную сумму кадра (header + payload + checksum)
func VerifyChecksum(packet []byte) bool {
	if len(packet) < headerSize+checksumSize {
		return false
	}
	ckA, ckB := Checksum(packet[2 : len(packet)-2])
	return packet[len(packet)-2] == ckA && packet[len(packet)-1] == ckB
}

// Payload возвращает payload кадра (без проверки checksum)
func Payload(packet []byte) []byte {
	h, ok := ParseHeader(packet)
	if !ok || len(packet) < headerSize+int(h.Length)+checksumSize {
		return nil
	}
	return packet[headerSize : headerSize+int(h.Length)]
}
