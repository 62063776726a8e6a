package frame

import (
	"errors"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers.
const (
	fieldStreamID = 1
	fieldPTS      = 2
	fieldKeyframe = 3
	fieldPayload  = 4
)

var ErrCorruptFrame = errors.New("frame: corrupt record")

// Marshal encodes a frame as a protobuf wire-format body.
func Marshal(f *Frame) []byte {
	b := make([]byte, 0, 16+len(f.Payload))
	b = protowire.AppendTag(b, fieldStreamID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.StreamID))
	b = protowire.AppendTag(b, fieldPTS, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(f.PTS))
	if f.Keyframe {
		b = protowire.AppendTag(b, fieldKeyframe, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Payload)
	return b
}

// Unmarshal decodes a wire-format body into f, reusing f's payload
// buffer. Unknown fields are skipped.
func Unmarshal(data []byte, f *Frame) error {
	f.Reset()
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrCorruptFrame
		}
		data = data[n:]

		switch {
		case num == fieldStreamID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ErrCorruptFrame
			}
			f.StreamID = uint32(v)
			data = data[n:]
		case num == fieldPTS && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ErrCorruptFrame
			}
			f.PTS = protowire.DecodeZigZag(v)
			data = data[n:]
		case num == fieldKeyframe && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ErrCorruptFrame
			}
			f.Keyframe = v != 0
			data = data[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return ErrCorruptFrame
			}
			f.Payload = append(f.Payload[:0], v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ErrCorruptFrame
			}
			data = data[n:]
		}
	}
	return nil
}

// Encode frames the body with an 8-byte header: body length then
// CRC32, both little-endian. This is the layout persisted records
// and published messages use.
func Encode(f *Frame) []byte {
	body := Marshal(f)
	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, 8, 8+len(body))
	putUint32LE(out[:4], uint32(len(body)))
	putUint32LE(out[4:], crc)
	return append(out, body...)
}

// Decode validates the header and CRC, then unmarshals into f.
func Decode(data []byte, f *Frame) error {
	if len(data) < 8 {
		return ErrCorruptFrame
	}
	body := data[8:]
	if uint32(len(body)) != readUint32LE(data[:4]) {
		return ErrCorruptFrame
	}
	if crc32.ChecksumIEEE(body) != readUint32LE(data[4:]) {
		return ErrCorruptFrame
	}
	return Unmarshal(body, f)
}

func putUint32LE(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func readUint32LE(buf []byte) uint32 {
	return uint32(buf[0]) |
		uint32(buf[1])<<8 |
		uint32(buf[2])<<16 |
		uint32(buf[3])<<24
}
