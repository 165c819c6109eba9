package queue

import (
	"math"
	"time"
)

// RetryDecisionKind is the outcome of Decide.
type RetryDecisionKind int

const (
	Retry RetryDecisionKind = iota
	Dead
)

// RetryDecision is the pure-function output of the Retry Policy (spec
// §4.6): either retry the job at NewRunAt, or move it to the dead letter
// queue.
type RetryDecision struct {
	Kind      RetryDecisionKind
	NewRunAt  time.Time
	DelaySecs float64
}

// Decide computes the next-attempt time, or a DLQ verdict, from a job's
// post-failure attempt count and the current Config.
//
// attemptsAfterFailure is the attempt counter *after* this failure is
// recorded (spec §4.6): the first retry waits backoffBase^1, the second
// backoffBase^2, and so on.
//
// Unlike the teacher's calculateRetryDelay (which applies full jitter to
// spread reclaim load across many concurrent consumers), this function is
// deliberately deterministic: spec §8 property P3 requires the gap between
// consecutive attempts to be *at least* backoffBase^n seconds, which a
// jittered delay could violate by landing below that floor.
func Decide(attemptsAfterFailure, maxRetries, backoffBase int, now time.Time) RetryDecision {
	if attemptsAfterFailure > maxRetries {
		return RetryDecision{Kind: Dead, NewRunAt: now}
	}

	delay := math.Pow(float64(backoffBase), float64(attemptsAfterFailure))
	return RetryDecision{
		Kind:      Retry,
		NewRunAt:  now.Add(time.Duration(delay * float64(time.Second))),
		DelaySecs: delay,
	}
}
