package orchestrator

import "time"

// #region budget

// Budget bounds a retry loop. MaxTries <= 0 disables the try limit and a
// zero Deadline disables the time limit.
type Budget struct {
	MaxTries int
	Deadline time.Time
}

// NewBudget starts a budget at now. maxTime <= 0 means no deadline.
func NewBudget(maxTries int, maxTime time.Duration, now time.Time) Budget {
	b := Budget{MaxTries: maxTries}
	if maxTime > 0 {
		b.Deadline = now.Add(maxTime)
	}
	return b
}

// #endregion

// #region spent

// Spent reports whether another attempt may be made after tries attempts.
func (b Budget) Spent(tries int, now time.Time) bool {
	if b.MaxTries > 0 && tries >= b.MaxTries {
		return true
	}
	if !b.Deadline.IsZero() && !now.Before(b.Deadline) {
		return true
	}
	return false
}

// #endregion
