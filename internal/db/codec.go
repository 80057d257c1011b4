package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sweep grids and responses are stored as little-endian IEEE 754 blobs:
// 8 bytes per float, 16 per complex point. Denser than JSON and loadable
// without per-point scanning.

func encodeFloats(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFloats(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("float blob length %d not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}

func encodeComplexes(vals []complex128) []byte {
	buf := make([]byte, 16*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[16*i:], math.Float64bits(real(v)))
		binary.LittleEndian.PutUint64(buf[16*i+8:], math.Float64bits(imag(v)))
	}
	return buf
}

func decodeComplexes(buf []byte) ([]complex128, error) {
	if len(buf)%16 != 0 {
		return nil, fmt.Errorf("complex blob length %d not a multiple of 16", len(buf))
	}
	out := make([]complex128, len(buf)/16)
	for i := range out {
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i+8:]))
		out[i] = complex(re, im)
	}
	return out, nil
}
