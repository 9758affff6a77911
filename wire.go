package xconn

import (
	"encoding/binary"
	"math/bits"
)

// Every connection made by this package negotiates little-endian order.
var order = binary.LittleEndian

// Pad rounds n up to a multiple of 4, the unit of every request and reply.
func Pad(n int) int { return (n + 3) &^ 3 }

// PadBytes extends buf with zero bytes up to the next 4 byte boundary.
func PadBytes(buf []byte) []byte {
	return append(buf, make([]byte, Pad(len(buf))-len(buf))...)
}

func Put16(buf []byte, v uint16) { order.PutUint16(buf, v) }

func Put32(buf []byte, v uint32) { order.PutUint32(buf, v) }

func Get16(buf []byte) uint16 { return order.Uint16(buf) }

func Get32(buf []byte) uint32 { return order.Uint32(buf) }

// PopCount counts the values a value-list mask calls for.
func PopCount(mask int) int { return bits.OnesCount32(uint32(mask)) }
