package frame

import (
	"encoding/binary"
	"fmt"
)

const seqSize = 8

// EncodeSample собирает кадр отсчёта: номер отсчёта и блок памяти сигналов
func EncodeSample(seq uint64, block []byte) ([]byte, error) {
	payload := make([]byte, seqSize+len(block))
	binary.LittleEndian.PutUint64(payload, seq)
	copy(payload[seqSize:], block)
	return Encode(ClassData, IDSample, payload)
}

// IsSample проверяет, что пакет — кадр отсчёта
func IsSample(packet []byte) bool {
	h, ok := ParseHeader(packet)
	return ok && h.Class == ClassData && h.ID == IDSample
}

// DecodeSample разбирает кадр отсчёта; block ссылается на память packet
func DecodeSample(packet []byte) (seq uint64, block []byte, err error) {
	if !IsSample(packet) {
		return 0, nil, fmt.Errorf("not a sample frame")
	}
	if !VerifyChecksum(packet) {
		return 0, nil, ErrChecksum
	}
	p := Payload(packet)
	if len(p) < seqSize {
		return 0, nil, fmt.Errorf("sample payload too short: %d", len(p))
	}
	return binary.LittleEndian.Uint64(p), p[seqSize:], nil
}
