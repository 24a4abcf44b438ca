package denoise_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"tabcap/internal/denoise"
)

type engineFunc func(ctx context.Context, frame []byte) ([]byte, error)

func (f engineFunc) Denoise(ctx context.Context, frame []byte) ([]byte, error) {
	return f(ctx, frame)
}

func TestProcessReturnsDenoisedFrame(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, frame []byte) ([]byte, error) {
		out := make([]byte, len(frame))
		for i := range frame {
			out[i] = frame[i] / 2
		}
		return out, nil
	})
	p := denoise.NewProcessor(engine, 50*time.Millisecond, nil)

	got := p.Process(context.Background(), []byte{10, 20})
	if !bytes.Equal(got, []byte{5, 10}) {
		t.Fatalf("Process = %v", got)
	}

	processed, missed := p.Stats()
	if processed != 1 || missed != 0 {
		t.Fatalf("stats = %d/%d", processed, missed)
	}
}

func TestProcessBudgetMissPassesThrough(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, frame []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := denoise.NewProcessor(engine, 10*time.Millisecond, nil)

	original := []byte{1, 2, 3}
	got := p.Process(context.Background(), original)
	if !bytes.Equal(got, original) {
		t.Fatalf("late frame must pass through, got %v", got)
	}

	_, missed := p.Stats()
	if missed != 1 {
		t.Fatalf("missed = %d", missed)
	}
}

func TestProcessEngineErrorPassesThrough(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, frame []byte) ([]byte, error) {
		return nil, errors.New("model crashed")
	})
	p := denoise.NewProcessor(engine, 50*time.Millisecond, nil)

	original := []byte{7, 8}
	if got := p.Process(context.Background(), original); !bytes.Equal(got, original) {
		t.Fatalf("errored frame must pass through, got %v", got)
	}
}

func TestProcessLengthMismatchPassesThrough(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, frame []byte) ([]byte, error) {
		return frame[:1], nil
	})
	p := denoise.NewProcessor(engine, 50*time.Millisecond, nil)

	original := []byte{4, 5, 6}
	if got := p.Process(context.Background(), original); !bytes.Equal(got, original) {
		t.Fatalf("resized frame must pass through, got %v", got)
	}
	_, missed := p.Stats()
	if missed != 1 {
		t.Fatalf("missed = %d", missed)
	}
}

func TestProcessNilEngineCountsEveryFrameMissed(t *testing.T) {
	p := denoise.NewProcessor(nil, 10*time.Millisecond, nil)

	for i := 0; i < 3; i++ {
		frame := []byte{byte(i)}
		if got := p.Process(context.Background(), frame); !bytes.Equal(got, frame) {
			t.Fatalf("frame %d altered: %v", i, got)
		}
	}

	processed, missed := p.Stats()
	if processed != 3 || missed != 3 {
		t.Fatalf("stats = %d/%d, want 3/3", processed, missed)
	}
}
