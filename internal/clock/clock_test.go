package clock

import (
	"testing"
	"time"
)

func TestToday(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	got := Today(time.Date(2025, 3, 9, 23, 59, 0, 0, loc))
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFakeTickerFiresOncePerPeriod(t *testing.T) {
	f := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	tk := f.NewTicker(time.Minute)

	f.Advance(30 * time.Second)
	select {
	case <-tk.C():
		t.Fatalf("ticker fired before its period")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatalf("expected tick after one period")
	}

	tk.Stop()
	f.Advance(time.Minute)
	select {
	case <-tk.C():
		t.Fatalf("stopped ticker fired")
	default:
	}
	if f.Tickers() != 0 {
		t.Fatalf("expected no live tickers, got %d", f.Tickers())
	}
}
