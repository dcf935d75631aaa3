package capture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cadenza-ai/cadenza/internal/capture"
	capturemock "github.com/cadenza-ai/cadenza/internal/capture/mock"
)

func TestStartStop_CapturesFedFrames(t *testing.T) {
	t.Parallel()

	src := &capturemock.Source{MIME: "audio/webm"}
	sess, err := capture.Start(context.Background(), src)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sess.Active() {
		t.Fatal("session should be active after Start")
	}

	stream := src.Streams[0]
	stream.Feed([]byte("abc"))
	stream.Feed([]byte("def"))

	clip, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := string(clip.Data); got != "abcdef" {
		t.Errorf("clip data: want %q, got %q", "abcdef", got)
	}
	if clip.MIMEType != "audio/webm" {
		t.Errorf("clip MIME: want audio/webm, got %q", clip.MIMEType)
	}
	if !stream.Closed() {
		t.Error("device stream must be released by Stop")
	}
	if sess.Active() {
		t.Error("session should be inactive after Stop")
	}
}

func TestStart_DeviceUnavailable(t *testing.T) {
	t.Parallel()

	src := &capturemock.Source{OpenErr: errors.New("device busy")}
	if _, err := capture.Start(context.Background(), src); err == nil {
		t.Fatal("Start with failing device: want error, got nil")
	}
	if len(src.Streams) != 0 {
		t.Errorf("no stream must be handed out on Open failure, got %d", len(src.Streams))
	}
}

func TestStop_Twice(t *testing.T) {
	t.Parallel()

	src := &capturemock.Source{}
	sess, err := capture.Start(context.Background(), src)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := sess.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if _, err := sess.Stop(); !errors.Is(err, capture.ErrNotActive) {
		t.Fatalf("second Stop: want ErrNotActive, got %v", err)
	}
}

func TestStop_EmptyRecording(t *testing.T) {
	t.Parallel()

	src := &capturemock.Source{}
	sess, err := capture.Start(context.Background(), src)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	clip, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(clip.Data) != 0 {
		t.Errorf("clip data: want empty, got %d bytes", len(clip.Data))
	}
}
