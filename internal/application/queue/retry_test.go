package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide_RetriesUnderMaxRetries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name                 string
		attemptsAfterFailure int
		maxRetries           int
		backoffBase          int
		wantDelaySecs        float64
	}{
		{"first retry", 1, 3, 2, 2},
		{"second retry", 2, 3, 2, 4},
		{"third retry", 3, 3, 2, 8},
		{"base 3", 2, 5, 3, 9},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.attemptsAfterFailure, tc.maxRetries, tc.backoffBase, now)
			assert.Equal(t, Retry, decision.Kind)
			assert.Equal(t, tc.wantDelaySecs, decision.DelaySecs)
			assert.Equal(t, now.Add(time.Duration(tc.wantDelaySecs*float64(time.Second))), decision.NewRunAt)
		})
	}
}

func TestDecide_DeadAfterMaxRetries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	decision := Decide(4, 3, 2, now)
	assert.Equal(t, Dead, decision.Kind)
	assert.Equal(t, now, decision.NewRunAt)
}

// TestDecide_GapsAreMonotonicallyIncreasing exercises spec property P3: the
// minimum gap between consecutive attempts must grow with attempts, never
// shrink — a jittered policy could violate this, which is why Decide never
// jitters.
func TestDecide_GapsAreMonotonicallyIncreasing(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backoffBase := 2
	maxRetries := 6

	var prevDelay float64
	for attempt := 1; attempt <= maxRetries; attempt++ {
		decision := Decide(attempt, maxRetries, backoffBase, now)
		if attempt > 1 {
			assert.Greater(t, decision.DelaySecs, prevDelay)
		}
		prevDelay = decision.DelaySecs
	}
}

func TestDecide_SameInputsAreDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Decide(2, 5, 2, now)
	b := Decide(2, 5, 2, now)
	assert.Equal(t, a, b)
}
