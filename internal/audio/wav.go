package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Payloads cross the wire as WAV (RIFF, PCM16LE) so the remote side knows the
// sample rate without out-of-band negotiation. Responses may come back as WAV
// or as bare PCM16LE at the agreed default rate.

var ErrMalformedPayload = errors.New("malformed audio payload")

const wavHeaderSize = 44

// EncodeWAV wraps mono PCM16LE samples in a minimal RIFF/WAVE envelope.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // channels: mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(out[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(out[34:36], 16)                   // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// DecodePayload extracts PCM16LE samples and their sample rate from a response
// payload. WAV envelopes are unwrapped; anything else is treated as bare PCM
// at fallbackRate. Odd-length PCM or a non-PCM envelope is malformed.
func DecodePayload(payload []byte, fallbackRate int) ([]byte, int, error) {
	if len(payload) >= wavHeaderSize && string(payload[0:4]) == "RIFF" && string(payload[8:12]) == "WAVE" {
		return decodeWAV(payload)
	}
	if len(payload)%2 != 0 {
		return nil, 0, fmt.Errorf("%w: odd pcm length %d", ErrMalformedPayload, len(payload))
	}
	return payload, fallbackRate, nil
}

func decodeWAV(payload []byte) ([]byte, int, error) {
	// Walk all chunks; some encoders put LIST or fact chunks before fmt or
	// between fmt and data, so nothing sits at a fixed offset past "WAVE".
	rate := 0
	haveFmt := false
	off := 12
	for off+8 <= len(payload) {
		id := string(payload[off : off+4])
		size := int(binary.LittleEndian.Uint32(payload[off+4 : off+8]))
		if size < 0 || off+8+size > len(payload) {
			return nil, 0, fmt.Errorf("%w: truncated %q chunk", ErrMalformedPayload, id)
		}
		body := payload[off+8 : off+8+size]
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrMalformedPayload, size)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, 0, fmt.Errorf("%w: unsupported wav format %d", ErrMalformedPayload, format)
			}
			channels := binary.LittleEndian.Uint16(body[2:4])
			if channels != 1 {
				return nil, 0, fmt.Errorf("%w: expected mono, got %d channels", ErrMalformedPayload, channels)
			}
			bits := binary.LittleEndian.Uint16(body[14:16])
			if bits != 16 {
				return nil, 0, fmt.Errorf("%w: expected 16-bit samples, got %d", ErrMalformedPayload, bits)
			}
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			if rate <= 0 {
				return nil, 0, fmt.Errorf("%w: sample rate %d", ErrMalformedPayload, rate)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt", ErrMalformedPayload)
			}
			if len(body)%2 != 0 {
				return nil, 0, fmt.Errorf("%w: odd data chunk length %d", ErrMalformedPayload, len(body))
			}
			return body, rate, nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return nil, 0, fmt.Errorf("%w: no data chunk", ErrMalformedPayload)
}
