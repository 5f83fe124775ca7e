// Package hostcall implements the narrow channel the guest uses to reach
// the host: a length-prefixed fixed-size buffer for event/result bytes, and
// the two synchronous host calls the guest engine is allowed to make —
// current-time and print. The vCPU exits, the host services the call
// synchronously, and the vCPU resumes; there is no other guest-initiated
// I/O surface.
package hostcall

import (
	"encoding/binary"
	"fmt"
)

// lengthPrefixSize is the width, in bytes, of the length prefix written
// ahead of every payload placed into a guest input/output buffer.
const lengthPrefixSize = 4

// EncodeInto writes payload, length-prefixed, into buf. buf must be sized
// to the configured guest buffer size; EncodeInto fails if payload (plus
// its 4-byte length prefix) does not fit.
func EncodeInto(buf []byte, payload []byte) error {
	need := lengthPrefixSize + len(payload)
	if need > len(buf) {
		return fmt.Errorf("payload of %d bytes (+%d byte prefix) exceeds %d byte buffer", len(payload), lengthPrefixSize, len(buf))
	}
	binary.LittleEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:need], payload)
	return nil
}

// DecodeFrom reads a length-prefixed payload back out of buf.
func DecodeFrom(buf []byte) ([]byte, error) {
	if len(buf) < lengthPrefixSize {
		return nil, fmt.Errorf("buffer too small to contain a length prefix: %d bytes", len(buf))
	}
	n := binary.LittleEndian.Uint32(buf[:lengthPrefixSize])
	end := lengthPrefixSize + int(n)
	if end > len(buf) {
		return nil, fmt.Errorf("length prefix %d exceeds buffer size %d", n, len(buf))
	}
	out := make([]byte, n)
	copy(out, buf[lengthPrefixSize:end])
	return out, nil
}
