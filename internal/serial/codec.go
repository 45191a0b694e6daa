package serial

import (
	"encoding/binary"

	"github.com/kstaniek/go-tcan-bench/internal/can"
)

const (
	preamble0 = 0x2D
	preamble1 = 0xD4

	insSend   = 2    // INS: CAN UART SEND WITH EXT ID
	flagsBase = 0x80 // FLAGS/DLC is always 0x80 | len
	envelope  = 4    // preamble(2) + len(1) + checksum(1)
)

// uartFrame wraps data in the adapter envelope:
// [0x2D, 0xD4, len+1, data..., checksum]
// checksum = (len+1) + 0x2D + sum(data) (mod 256)
func uartFrame(data []byte) []byte {
	n := len(data)
	out := make([]byte, n+envelope)
	out[0] = preamble0
	out[1] = preamble1
	out[2] = byte(n + 1)

	sum := out[2] + preamble0
	for i, b := range data {
		out[3+i] = b
		sum += b
	}
	out[3+n] = sum
	return out
}

// Encode renders fr as one adapter write:
// INS(1) | FLAGS(1) = 0x80 | len | ID(4, big-endian, no flag bits) | PAYLOAD(0..8)
// The send instruction carries no identifier-width bit; an 11-bit id is sent
// as its numeric value in the same four bytes.
func Encode(fr can.Frame) []byte {
	tab := make([]byte, 6+fr.Len)
	tab[0] = insSend
	tab[1] = flagsBase | fr.Len
	binary.BigEndian.PutUint32(tab[2:6], fr.ID())
	copy(tab[6:], fr.Payload())
	return uartFrame(tab)
}
