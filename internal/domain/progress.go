package domain

import "math"

// CountProgress summarizes item states for one session.
type CountProgress struct {
	TotalItems       int
	Pending          int
	Counted          int
	Verified         int
	Percent          int
	WithVariance     int
	NetVariance      int
	AbsoluteVariance int
}

// ComputeProgress tallies item states. An empty session reports 0%.
func ComputeProgress(items []CountItem) CountProgress {
	p := CountProgress{TotalItems: len(items)}
	for _, item := range items {
		switch item.Status {
		case ItemStatusCounted:
			p.Counted++
		case ItemStatusVerified:
			p.Verified++
		default:
			p.Pending++
		}
		if item.HasVariance() && item.Variance != nil {
			p.WithVariance++
			p.NetVariance += *item.Variance
			p.AbsoluteVariance += abs(*item.Variance)
		}
	}
	if p.TotalItems > 0 {
		p.Percent = int(math.Round(100 * float64(p.Counted+p.Verified) / float64(p.TotalItems)))
	}
	return p
}

// Complete reports whether every item is counted or verified.
func (p CountProgress) Complete() bool {
	return p.TotalItems > 0 && p.Counted+p.Verified == p.TotalItems
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
