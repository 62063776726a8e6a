package frame

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	in := &Frame{
		StreamID: 7,
		PTS:      -40_000, // negative timestamps survive zigzag
		Keyframe: true,
		Payload:  []byte("nal-unit-bytes"),
	}

	var out Frame
	if err := Decode(Encode(in), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.StreamID != in.StreamID || out.PTS != in.PTS || out.Keyframe != in.Keyframe {
		t.Errorf("got %+v, want %+v", out, *in)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload = %q, want %q", out.Payload, in.Payload)
	}
}

func TestCodecEmptyFrame(t *testing.T) {
	var out Frame
	if err := Decode(Encode(&Frame{}), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.StreamID != 0 || out.PTS != 0 || out.Keyframe || len(out.Payload) != 0 {
		t.Errorf("got %+v, want zero frame", out)
	}
}

func TestDecodeCorruptCRC(t *testing.T) {
	data := Encode(&Frame{StreamID: 1, Payload: []byte("x")})
	data[len(data)-1] ^= 0xff

	var out Frame
	if err := Decode(data, &out); err != ErrCorruptFrame {
		t.Errorf("err = %v, want ErrCorruptFrame", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := Encode(&Frame{StreamID: 1, Payload: []byte("abcdef")})

	var out Frame
	for cut := 0; cut < len(data); cut += 3 {
		if err := Decode(data[:cut], &out); err == nil {
			t.Errorf("decode of %d/%d bytes succeeded", cut, len(data))
		}
	}
}

func TestUnmarshalReusesPayload(t *testing.T) {
	f := &Frame{Payload: make([]byte, 0, 64)}
	backing := &f.Payload[:1][0]

	if err := Unmarshal(Marshal(&Frame{Payload: []byte("abc")}), f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if &f.Payload[0] != backing {
		t.Error("payload buffer was reallocated")
	}
}
