package common

import (
	"encoding/binary"
	"math"
)

// The snapshot format (spec §4.7) is little-endian throughout except where
// the wire protocol (not implemented by this module) calls for big-endian
// framing. These helpers centralize the byte order so persistence.go never
// spells out binary.LittleEndian directly.
//
// © 2025 minis authors. MIT License.

func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func Uint32(b []byte) uint32       { return binary.LittleEndian.Uint32(b) }
func Uint64(b []byte) uint64       { return binary.LittleEndian.Uint64(b) }

// AppendUint32 appends the little-endian encoding of v to dst.
func AppendUint32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendUint64 appends the little-endian encoding of v to dst.
func AppendUint64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendFloat64 appends the little-endian IEEE-754 encoding of v to dst.
func AppendFloat64(dst []byte, v float64) []byte {
	return AppendUint64(dst, math.Float64bits(v))
}

// Float64 decodes a little-endian IEEE-754 float64 from b.
func Float64(b []byte) float64 {
	return math.Float64frombits(Uint64(b))
}
