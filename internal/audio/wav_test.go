package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0}
	wav := EncodeWAV(samples, 16000, 1)

	if len(wav) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(wav), wavHeaderSize+len(samples)*2)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", size, len(samples)*2)
	}
}

func TestEncodeWAVClamps(t *testing.T) {
	wav := EncodeWAV([]float32{2.0, -2.0}, 16000, 1)

	first := int16(binary.LittleEndian.Uint16(wav[wavHeaderSize:]))
	second := int16(binary.LittleEndian.Uint16(wav[wavHeaderSize+2:]))

	if first != 32767 {
		t.Errorf("over-range sample = %d, want 32767", first)
	}
	if second != -32767 {
		t.Errorf("under-range sample = %d, want -32767", second)
	}
}
