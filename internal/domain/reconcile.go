package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ReconcilePolicy selects how a variance is resolved.
type ReconcilePolicy string

// ReconcilePolicy values.
const (
	PolicyAcceptCount  ReconcilePolicy = "accept_count"
	PolicyKeepSystem   ReconcilePolicy = "keep_system"
	PolicyManualAdjust ReconcilePolicy = "manual_adjust"
)

var validPolicies = []ReconcilePolicy{PolicyAcceptCount, PolicyKeepSystem, PolicyManualAdjust}

// ParseReconcilePolicy validates a raw policy value.
func ParseReconcilePolicy(raw string) (ReconcilePolicy, error) {
	policy := ReconcilePolicy(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(validPolicies, policy) {
		return "", ErrInvalidPolicy
	}
	return policy, nil
}

// Resolution is the outcome of applying a policy to one item.
type Resolution struct {
	FinalQuantity    int
	UpdateStock      bool
	OverwriteCounted bool
}

// Resolve computes the final quantity for an item. manual is only read for manual_adjust;
// a nil manual value falls back to the system quantity.
func (p ReconcilePolicy) Resolve(item CountItem, manual *int) Resolution {
	switch p {
	case PolicyAcceptCount:
		final := item.SystemQuantity
		if item.CountedQuantity != nil {
			final = *item.CountedQuantity
		}
		return Resolution{FinalQuantity: final, UpdateStock: true}
	case PolicyManualAdjust:
		final := item.SystemQuantity
		if manual != nil && *manual >= 0 {
			final = *manual
		}
		return Resolution{FinalQuantity: final, UpdateStock: true, OverwriteCounted: true}
	default:
		return Resolution{FinalQuantity: item.SystemQuantity}
	}
}

// Reason returns the audit reason recorded for stock changes made under the policy.
func (p ReconcilePolicy) Reason(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Inventory count reconciliation"
	}
	return fmt.Sprintf("%s - %s", prefix, p)
}
