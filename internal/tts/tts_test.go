package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/parley/internal/observability/metrics"
)

func TestPCMToWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	wav := PCMToWAV(pcm)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("chunk size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != BitsPerSample {
		t.Errorf("bits per sample = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d", got)
	}
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f fakeSynth) Synthesize(context.Context, Request) ([]byte, error) { return f.audio, f.err }

func TestInstrumented(t *testing.T) {
	m := metrics.NewMetricsWith(prometheus.NewRegistry())

	if _, err := Instrument(fakeSynth{}, m, nil).Synthesize(context.Background(), Request{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("empty text err = %v", err)
	}

	audio, err := Instrument(fakeSynth{audio: []byte("wav")}, m, nil).Synthesize(context.Background(), Request{Text: "Hello"})
	if err != nil || string(audio) != "wav" {
		t.Fatalf("got %q, %v", audio, err)
	}
	if got := testutil.ToFloat64(m.TTSRequests.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok count = %v", got)
	}

	if _, err := Instrument(fakeSynth{err: errors.New("boom")}, m, nil).Synthesize(context.Background(), Request{Text: "Hello"}); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(m.TTSRequests.WithLabelValues("error")); got != 1 {
		t.Errorf("error count = %v", got)
	}

	if _, err := Instrument(Disabled{}, m, nil).Synthesize(context.Background(), Request{Text: "Hello"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled err = %v", err)
	}
}
