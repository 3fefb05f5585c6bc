package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := SilencePCM16(250*time.Millisecond, 8000)
	wav, err := EncodeWAVPCM16LE(pcm, 8000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != WAVHeaderSize+len(pcm) {
		t.Fatalf("wav size = %d, want %d", len(wav), WAVHeaderSize+len(pcm))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", wav[:4], wav[8:12])
	}
	rate := binary.LittleEndian.Uint32(wav[24:28])
	if rate != 8000 {
		t.Fatalf("sample rate = %d, want 8000", rate)
	}
}

func TestPCM16DurationRoundTrip(t *testing.T) {
	for _, want := range []time.Duration{0, 100 * time.Millisecond, 2 * time.Second} {
		pcm := SilencePCM16(want, 16000)
		got := PCM16Duration(len(pcm), 16000)
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Millisecond {
			t.Fatalf("PCM16Duration = %v, want about %v", got, want)
		}
	}
}
