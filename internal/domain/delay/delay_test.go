package delay

import (
	"testing"
	"time"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestExecutionsPerInitiation(t *testing.T) {
	tests := []struct {
		level   int
		perExec int
		want    float64
	}{
		{3, 50, 0.5},
		{2, 10, 0.9},
		{1, 100, 0.01},
		{4, 25, 1.96},
		{2, 1, 9},
		{5, 100, 0.81},
		{0, 100, 0.01},
		{-4, 100, 0.01},
		{2, 0, 9},
		{2, -3, 9},
	}

	for _, tc := range tests {
		if got := ExecutionsPerInitiation(tc.level, tc.perExec); got != tc.want {
			t.Errorf("ExecutionsPerInitiation(%d, %d) = %v, want %v", tc.level, tc.perExec, got, tc.want)
		}
	}
}

func TestCalculateDelayPeriod(t *testing.T) {
	tests := []struct {
		name     string
		donation time.Time
		level    int
		perExec  int
		retries  int
		between  float64
		want     int
	}{
		{"ten hours ahead", now.Add(10 * time.Hour), 3, 50, 5, 1, 7200},
		{"ten minutes ahead hits floor", now.Add(10 * time.Minute), 3, 50, 5, 1, 1800},
		{"five minutes ahead hits floor", now.Add(5 * time.Minute), 3, 50, 5, 1, 1800},
		{"donation in the past", now.Add(-2 * time.Hour), 3, 50, 5, 1, 1800},
		{"zero donation time", time.Time{}, 3, 50, 5, 1, 1800},
		{"one day, five retries", now.Add(24 * time.Hour), 3, 50, 5, 1, 17280},
		{"one day, ten retries", now.Add(24 * time.Hour), 3, 50, 10, 1, 8640},
		{"one day, level five", now.Add(24 * time.Hour), 5, 50, 5, 1, 17278},
		{"one day, single retry", now.Add(24 * time.Hour), 3, 50, 1, 1, 86400},
		{"one week", now.Add(7 * 24 * time.Hour), 3, 50, 5, 1, 120960},
		{"zero retries treated as one", now.Add(24 * time.Hour), 3, 50, 0, 1, 86400},
		{"negative between treated as zero", now.Add(10 * time.Hour), 3, 50, 5, -100, 7200},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateDelayPeriod(tc.donation, now, tc.level, tc.perExec, tc.retries, tc.between)
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculateDelayPeriod_NeverBelowFloor(t *testing.T) {
	offsets := []time.Duration{-48 * time.Hour, -time.Second, 0, time.Minute, time.Hour, 3 * time.Hour, 72 * time.Hour}
	for _, off := range offsets {
		for _, retries := range []int{-1, 0, 1, 5, 50, 1000} {
			for _, between := range []float64{0, 1, 60, 3600} {
				got := CalculateDelayPeriod(now.Add(off), now, 3, 50, retries, between)
				if got < 1800 {
					t.Fatalf("offset %v retries %d between %v: got %d < 1800", off, retries, between, got)
				}
			}
		}
	}
}

func TestCalculateDelayPeriod_MonotonicInRetries(t *testing.T) {
	donation := now.Add(36 * time.Hour)
	prev := CalculateDelayPeriod(donation, now, 3, 50, 1, 1)
	for retries := 2; retries <= 40; retries++ {
		got := CalculateDelayPeriod(donation, now, 3, 50, retries, 1)
		if got > prev {
			t.Fatalf("retries %d: delay %d > previous %d", retries, got, prev)
		}
		prev = got
	}
}

func TestCalculateDelayPeriod_MonotonicInDelayBetweenExecution(t *testing.T) {
	donation := now.Add(36 * time.Hour)
	prev := CalculateDelayPeriod(donation, now, 4, 25, 5, 0)
	for between := 1.0; between <= 5000; between *= 2 {
		got := CalculateDelayPeriod(donation, now, 4, 25, 5, between)
		if got > prev {
			t.Fatalf("between %v: delay %d > previous %d", between, got, prev)
		}
		prev = got
	}
}

func TestCalculateDelayPeriod_MonotonicInTimeAvailable(t *testing.T) {
	prev := 0
	for h := 0; h <= 200; h += 5 {
		got := CalculateDelayPeriod(now.Add(time.Duration(h)*time.Hour), now, 3, 50, 5, 1)
		if got < prev {
			t.Fatalf("%dh ahead: delay %d < previous %d", h, got, prev)
		}
		prev = got
	}
}

func TestRetryBudget_CustomFloor(t *testing.T) {
	r := RetryBudget{
		MaxNeighborSearchLevel:   3,
		MaxGeohashesPerExecution: 50,
		MaxInitiatingRetryCount:  5,
		DelayBetweenExecution:    time.Second,
		MinDelay:                 time.Hour,
	}
	got := r.DelaySeconds(Input{DonationDateTime: now.Add(2 * time.Hour)}, now)
	if got != 3600 {
		t.Errorf("got %d, want 3600", got)
	}
	if r.Name() != RetryBudgetStrategy {
		t.Errorf("Name() = %q", r.Name())
	}
}

func TestRetryBudget_Idempotent(t *testing.T) {
	r := RetryBudget{MaxNeighborSearchLevel: 3, MaxGeohashesPerExecution: 50, MaxInitiatingRetryCount: 5}
	in := Input{DonationDateTime: now.Add(13 * time.Hour)}
	if a, b := r.DelaySeconds(in, now), r.DelaySeconds(in, now); a != b {
		t.Fatalf("repeat call differs: %d vs %d", a, b)
	}
}

func TestUrgencyClamped(t *testing.T) {
	c := DefaultUrgencyClamped()
	twoDays := now.Add(48 * time.Hour)

	tests := []struct {
		name      string
		donation  time.Time
		remaining int
		u         urgency.Urgency
		want      int
	}{
		{"urgent clamped to max", twoDays, 1, urgency.Urgent, 10 * 3600},
		{"regular within range", twoDays, 1, urgency.Regular, 14 * 3600},
		{"regular clamped to min", twoDays, 4, urgency.Regular, 7 * 3600},
		{"urgent clamped to min", twoDays, 10, urgency.Urgent, 5 * 3600},
		{"nothing remaining", twoDays, 0, urgency.Urgent, 10 * 3600},
		{"donation passed", now.Add(-time.Hour), 2, urgency.Regular, 7 * 3600},
		{"unknown urgency uses regular", twoDays, 1, urgency.Urgency("critical"), 14 * 3600},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.DelaySeconds(Input{
				DonationDateTime:    tc.donation,
				RemainingBagsNeeded: tc.remaining,
				Urgency:             tc.u,
			}, now)
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestUrgencyClamped_Name(t *testing.T) {
	if DefaultUrgencyClamped().Name() != UrgencyClampedStrategy {
		t.Error("unexpected strategy name")
	}
}
