package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:i+2], uint16(int16(i%251)))
	}
	wav := EncodeWAV(pcm, 16000)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("unexpected envelope size %d", len(wav))
	}

	got, rate, err := DecodePayload(wav, 48000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("expected rate 16000 from envelope, got %d", rate)
	}
	if len(got) != len(pcm) {
		t.Fatalf("expected %d pcm bytes, got %d", len(pcm), len(got))
	}
	for i := range got {
		if got[i] != pcm[i] {
			t.Fatalf("pcm mismatch at %d", i)
		}
	}
}

func TestDecodePayload_RawFallback(t *testing.T) {
	raw := []byte{1, 0, 2, 0, 3, 0}
	got, rate, err := DecodePayload(raw, 24000)
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if rate != 24000 {
		t.Fatalf("expected fallback rate, got %d", rate)
	}
	if len(got) != len(raw) {
		t.Fatalf("expected passthrough, got %d bytes", len(got))
	}
}

func TestDecodePayload_OddRawLength(t *testing.T) {
	if _, _, err := DecodePayload([]byte{1, 0, 2}, 24000); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestDecodePayload_RejectsNonPCM(t *testing.T) {
	wav := EncodeWAV([]byte{1, 0}, 16000)
	binary.LittleEndian.PutUint16(wav[20:22], 3) // IEEE float
	if _, _, err := DecodePayload(wav, 16000); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for float wav, got %v", err)
	}
}

// Some encoders emit LIST/fact chunks before fmt; decoding must not assume
// fmt sits right after the RIFF header.
func TestDecodePayload_LeadingListChunk(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	wav := EncodeWAV(pcm, 22050)
	list := make([]byte, 8+6)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 6)
	copy(list[8:], "INFOxy")
	// splice the LIST chunk between "WAVE" and "fmt "
	shifted := append(append(append([]byte{}, wav[:12]...), list...), wav[12:]...)

	got, rate, err := DecodePayload(shifted, 16000)
	if err != nil {
		t.Fatalf("decode with leading LIST chunk: %v", err)
	}
	if rate != 22050 {
		t.Fatalf("expected envelope rate 22050, got %d", rate)
	}
	if len(got) != len(pcm) {
		t.Fatalf("expected %d pcm bytes, got %d", len(pcm), len(got))
	}
}

func TestDecodePayload_DataBeforeFmt(t *testing.T) {
	payload := make([]byte, 0, 64)
	payload = append(payload, "RIFF"...)
	payload = binary.LittleEndian.AppendUint32(payload, 16)
	payload = append(payload, "WAVE"...)
	payload = append(payload, "data"...)
	payload = binary.LittleEndian.AppendUint32(payload, 4)
	payload = append(payload, 1, 0, 2, 0)
	if _, _, err := DecodePayload(payload, 16000); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for data before fmt, got %v", err)
	}
}

func TestDecodePayload_TruncatedDataChunk(t *testing.T) {
	wav := EncodeWAV(make([]byte, 100), 16000)
	// claim more data than present
	binary.LittleEndian.PutUint32(wav[40:44], 4096)
	if _, _, err := DecodePayload(wav, 16000); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for truncated chunk, got %v", err)
	}
}
