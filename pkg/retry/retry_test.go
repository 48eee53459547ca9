package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoSucceedsAfterTwoFailures(t *testing.T) {
	rec := &recorder{}
	calls := 0

	got, err := Do(context.Background(), Policy{Sleep: rec.sleep}, func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestDoReturnsFinalError(t *testing.T) {
	rec := &recorder{}
	final := errors.New("final")
	calls := 0

	_, err := Do(context.Background(), Policy{Sleep: rec.sleep}, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, final
		}
		return 0, errors.New("transient")
	})
	if err != final {
		t.Errorf("err = %v, want the final attempt's error unchanged", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(rec.delays) != 2 {
		t.Errorf("delays = %v, want 2 waits", rec.delays)
	}
}

func TestDoNonRetryable(t *testing.T) {
	rec := &recorder{}
	errPermanent := errors.New("permanent")
	calls := 0

	_, err := Do(context.Background(), Policy{
		Sleep:     rec.sleep,
		Retryable: func(err error) bool { return !errors.Is(err, errPermanent) },
	}, func(context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Errorf("err = %v, want %v", err, errPermanent)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Errorf("calls = %d, delays = %v; want a single attempt", calls, rec.delays)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Policy{BaseDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoOnRetry(t *testing.T) {
	var attempts []int
	_, _ = Do(context.Background(), Policy{
		Attempts:  4,
		BaseDelay: time.Millisecond,
		Sleep:     (&recorder{}).sleep,
		OnRetry:   func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	}, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	if len(attempts) != 3 || attempts[0] != 0 || attempts[2] != 2 {
		t.Errorf("OnRetry attempts = %v, want [0 1 2]", attempts)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if got := (Policy{}).Delay(1); got != 2*time.Second {
		t.Errorf("zero policy Delay(1) = %v, want 2s", got)
	}
}
