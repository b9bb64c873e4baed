package auth

import "time"

const (
	// DefaultMaxAttempts is the number of consecutive failures that starts a lockout round.
	DefaultMaxAttempts = 3
	// DefaultBaseLockDuration is the lock length of the first round.
	DefaultBaseLockDuration = time.Minute
	// DefaultMaxLockDuration caps the exponential backoff.
	DefaultMaxLockDuration = time.Hour
)

// LockState is the lockout-relevant slice of an account.
type LockState struct {
	LoginAttempts int
	FailedRounds  int
	LockUntil     *time.Time
}

// Decision is the outcome of evaluating a LockState before a credential check.
type Decision struct {
	// Locked is true while LockUntil is in the future.
	Locked bool
	// RetryAfter is the whole number of seconds until the lock lifts.
	RetryAfter int
	// Released is true when an expired lock must be cleared before proceeding.
	Released bool
}

// LockoutPolicy is a pure state machine over LockState. Lockouts escalate
// exponentially per round until a successful login resets them.
type LockoutPolicy struct {
	MaxAttempts int
	BaseLock    time.Duration
	MaxLock     time.Duration
}

// DefaultLockoutPolicy returns the 3 attempts, 1 minute doubling, 1 hour cap policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseLock:    DefaultBaseLockDuration,
		MaxLock:     DefaultMaxLockDuration,
	}
}

// Evaluate decides whether a login may proceed at now.
func (p LockoutPolicy) Evaluate(now time.Time, s LockState) Decision {
	if s.LockUntil == nil {
		return Decision{}
	}
	if s.LockUntil.After(now) {
		remaining := s.LockUntil.Sub(now)
		return Decision{
			Locked:     true,
			RetryAfter: int((remaining + time.Second - 1) / time.Second),
		}
	}
	return Decision{Released: true}
}

// Release clears an expired lock. FailedRounds is kept so the next lock
// keeps escalating.
func (p LockoutPolicy) Release(s LockState) LockState {
	s.LoginAttempts = 0
	s.LockUntil = nil
	return s
}

// Escalate applies the threshold rule to a state whose LoginAttempts has
// already been incremented. Reaching the threshold starts a new round.
func (p LockoutPolicy) Escalate(now time.Time, s LockState) LockState {
	if s.LoginAttempts < p.maxAttempts() {
		return s
	}
	s.FailedRounds++
	until := now.Add(p.LockDuration(s.FailedRounds))
	s.LockUntil = &until
	s.LoginAttempts = 0
	return s
}

// RecordSuccess returns the fully reset state.
func (p LockoutPolicy) RecordSuccess() LockState {
	return LockState{}
}

// LockDuration returns the lock length for the given round:
// base * 2^(round-1), capped at MaxLock.
func (p LockoutPolicy) LockDuration(round int) time.Duration {
	base, ceiling := p.BaseLock, p.MaxLock
	if base <= 0 {
		base = DefaultBaseLockDuration
	}
	if ceiling <= 0 {
		ceiling = DefaultMaxLockDuration
	}
	if round < 1 {
		round = 1
	}

	d := base
	for i := 1; i < round; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

func (p LockoutPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}
