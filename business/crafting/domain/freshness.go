package domain

import "time"

// Freshness classifies how recent a price observation is.
type Freshness int

const (
	FreshnessUnknown Freshness = iota
	FreshnessFresh
	FreshnessAging
	FreshnessStale
)

func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessAging:
		return "aging"
	case FreshnessStale:
		return "stale"
	default:
		return "unknown"
	}
}

func (f Freshness) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Freshness) UnmarshalText(b []byte) error {
	for _, v := range []Freshness{FreshnessFresh, FreshnessAging, FreshnessStale} {
		if v.String() == string(b) {
			*f = v
			return nil
		}
	}
	*f = FreshnessUnknown
	return nil
}

// FreshnessPolicy holds the age thresholds.
type FreshnessPolicy struct {
	AgingAfter time.Duration
	StaleAfter time.Duration
}

// DefaultFreshnessPolicy marks prices aging after 6h and stale after 24h.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{AgingAfter: 6 * time.Hour, StaleAfter: 24 * time.Hour}
}

// Classify returns the freshness of an observation at updatedAt.
func (p FreshnessPolicy) Classify(updatedAt, now time.Time) Freshness {
	if updatedAt.IsZero() {
		return FreshnessUnknown
	}
	age := now.Sub(updatedAt)
	switch {
	case p.StaleAfter > 0 && age >= p.StaleAfter:
		return FreshnessStale
	case p.AgingAfter > 0 && age >= p.AgingAfter:
		return FreshnessAging
	default:
		return FreshnessFresh
	}
}

// Worse returns the less fresh of a and b. Unknown ranks between aging and stale.
func Worse(a, b Freshness) Freshness {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(f Freshness) int {
	switch f {
	case FreshnessFresh:
		return 0
	case FreshnessAging:
		return 1
	case FreshnessUnknown:
		return 2
	default:
		return 3
	}
}
