// Package frame implements the Frame Codec: it builds outbound command
// frames with a trailing 16-bit big-endian additive checksum, and parses
// inbound frames whose length is determined by a one-octet status
// discriminator (spec.md §4.3). The bit-reversal codec sits at this
// package's I/O boundary, since every buffer crossing the serial line
// driver is bit-mirrored in either direction (spec.md §4.2).
package frame

import (
	"encoding/binary"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

// Status discriminators, first octet of a response frame (spec.md §3).
const (
	StatusDataOK    byte = 0x81
	StatusWriteOK   byte = 0x80
	StatusShortNACK byte = 0x82
)

// SyncByte is the reset handshake's synchronisation octet.
const SyncByte byte = 0xAA

// Verbosity controls whether Send and ParseResponse log a hex dump of the
// frame. It is
// set once when a link.Controller is constructed and never mutated
// globally — a lexically scoped replacement for the original script's
// global print-TX/RX flags (spec.md §9).
type Verbosity int

const (
	// Silent logs nothing.
	Silent Verbosity = iota
	// Verbose logs every frame sent and received, hex-encoded.
	Verbose
)

// Checksum returns the unsigned 16-bit sum of every octet in buf, modulo
// 2^16 (spec.md §3, invariant i).
func Checksum(buf []byte) uint16 {
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	return uint16(sum)
}

// BuildCommand assembles opcode(1) | acc(1) | third(1) | args... and
// appends the big-endian trailing checksum over every preceding octet.
func BuildCommand(opcode, acc, third byte, args ...byte) []byte {
	body := make([]byte, 0, 3+len(args)+2)
	body = append(body, opcode, acc, third)
	body = append(body, args...)
	cs := Checksum(body)
	out := make([]byte, len(body)+2)
	copy(out, body)
	binary.BigEndian.PutUint16(out[len(body):], cs)
	return out
}

// Response is a decoded inbound frame.
type Response struct {
	Status   byte
	ACCEcho  byte
	Length   byte
	Payload  []byte
	Checksum uint16
	Short    bool // true if this was a two-octet short NACK
	Raw      []byte
}

// ChecksumOK reports whether Response.Checksum matches the additive
// checksum of the preceding octets. This is a diagnostic only — spec.md
// §4.3 does not require the core to verify it before accepting a frame.
func (r *Response) ChecksumOK() bool {
	if r.Short {
		return true // short NACKs carry no checksum
	}
	body := r.Raw[:len(r.Raw)-2]
	return Checksum(body) == r.Checksum
}

// Send bit-reverses cmd and writes it to port, flushing any stale input
// first so the next read is not contaminated by a leftover reply to a
// prior, unrelated frame.
func Send(port serialport.Port, cmd []byte, v Verbosity) error {
	if err := port.FlushInput(); err != nil {
		return protoerr.Wrap(protoerr.KindPortUnavailable, "flush before send", err)
	}
	wire := bitrev.Reversed(cmd)
	if v == Verbose {
		logHex("TX", cmd)
	}
	return port.Write(wire)
}

// ParseResponse reads an inbound frame from port. maxLen is the caller's
// expected maximum total frame length (header + payload + checksum, or 2
// for a short NACK). The codec reads one octet first; if it is, after
// bit-reversal, the short-NACK discriminator, it reads exactly one more
// octet and returns early — regardless of maxLen. Otherwise it reads
// maxLen-1 further octets. This two-stage read is the protocol's chosen
// way to avoid blocking on an absent payload when the device short-
// circuits a reply (spec.md §4.3).
func ParseResponse(port serialport.Port, maxLen int, v Verbosity) (*Response, error) {
	first, err := port.ReadFull(1)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTimeout, "read status octet", err)
	}
	status := bitrev.Byte(first[0])

	if status == StatusShortNACK {
		rest, err := port.ReadFull(1)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindTimeout, "read short NACK code", err)
		}
		raw := []byte{status, bitrev.Byte(rest[0])}
		if v == Verbose {
			logHex("RX", raw)
		}
		return &Response{
			Status:  status,
			ACCEcho: raw[1],
			Short:   true,
			Raw:     raw,
		}, nil
	}

	if maxLen < 1 {
		return nil, protoerr.New(protoerr.KindMalformed, "maxLen must cover the status octet")
	}
	rest, err := port.ReadFull(maxLen - 1)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTimeout, "read frame body", err)
	}
	raw := make([]byte, maxLen)
	raw[0] = status
	copy(raw[1:], bitrev.Reversed(rest))

	if v == Verbose {
		logHex("RX", raw)
	}

	if len(raw) < 5 {
		return nil, protoerr.New(protoerr.KindMalformed, "frame shorter than the 3-octet header + 2-octet checksum")
	}

	length := raw[2]
	if int(length) > len(raw)-5 {
		return nil, protoerr.New(protoerr.KindMalformed, "declared payload length exceeds frame")
	}

	resp := &Response{
		Status:   status,
		ACCEcho:  raw[1],
		Length:   length,
		Payload:  append([]byte(nil), raw[3:3+int(length)]...),
		Checksum: binary.BigEndian.Uint16(raw[len(raw)-2:]),
		Raw:      raw,
	}
	return resp, nil
}

func logHex(dir string, buf []byte) {
	const hexdigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(buf)*3)
	for i, b := range buf {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, hexdigits[b>>4], hexdigits[b&0xF])
	}
	logf("%s: %s", dir, out)
}
