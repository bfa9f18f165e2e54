package clock

import (
	"testing"
	"time"
)

func TestReal_Now(t *testing.T) {
	clk := Real()

	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real().Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestFake_NowIsStable(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	if got := clk.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	if got := clk.Now(); !got.Equal(start) {
		t.Errorf("Now() moved without Advance: %v", got)
	}
}

func TestFake_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	clk.Sleep(5 * time.Second)

	want := start.Add(5 * time.Second)
	if got := clk.Now(); !got.Equal(want) {
		t.Errorf("Now() after Sleep = %v, want %v", got, want)
	}
}

func TestFake_SleepNonPositive(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	clk.Sleep(0)
	clk.Sleep(-time.Second)

	if got := clk.Now(); !got.Equal(start) {
		t.Errorf("Now() changed on non-positive Sleep: %v", got)
	}
}

func TestFake_AfterFiresImmediately(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	select {
	case got := <-clk.After(30 * time.Second):
		want := start.Add(30 * time.Second)
		if !got.Equal(want) {
			t.Errorf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatal("After channel was not ready")
	}

	if got := clk.Now(); !got.Equal(start.Add(30 * time.Second)) {
		t.Errorf("Now() after After = %v, want advanced time", got)
	}
}

func TestFake_TickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	ticker := clk.NewTicker(10 * time.Second)
	defer ticker.Stop()

	select {
	case <-ticker.C:
		t.Fatal("Ticker fired before Advance")
	default:
	}

	clk.Advance(10 * time.Second)

	select {
	case got := <-ticker.C:
		want := start.Add(10 * time.Second)
		if !got.Equal(want) {
			t.Errorf("tick time = %v, want %v", got, want)
		}
	default:
		t.Fatal("Ticker did not fire after Advance past interval")
	}
}

func TestFake_TickerDropsOverflow(t *testing.T) {
	clk := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals elapse but the buffer holds one tick.
	clk.Advance(3 * time.Second)

	count := 0
	for {
		select {
		case <-ticker.C:
			count++
		default:
			if count != 1 {
				t.Errorf("buffered ticks = %d, want 1", count)
			}
			return
		}
	}
}

func TestFake_StoppedTickerDoesNotFire(t *testing.T) {
	clk := Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ticker := clk.NewTicker(time.Second)
	ticker.Stop()
	clk.Advance(5 * time.Second)

	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFake_SetMovesBackward(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	past := start.Add(-time.Hour)
	clk.Set(past)

	if got := clk.Now(); !got.Equal(past) {
		t.Errorf("Now() after Set = %v, want %v", got, past)
	}
}
