// Package provider defines the billing providers vibemeter can poll and the
// canonical records their API responses are normalized into.
package provider

import (
	"fmt"
	"sort"
)

// Provider identifies a billing source. It is the aggregation key used by the
// spending store, the connection tracker, and the settings store.
type Provider string

const (
	Cursor Provider = "cursor"
	Claude Provider = "claude"
)

// All returns every known provider in identifier order.
func All() []Provider {
	ps := []Provider{Claude, Cursor}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// Parse converts a string into a known Provider.
func Parse(s string) (Provider, error) {
	switch Provider(s) {
	case Cursor:
		return Cursor, nil
	case Claude:
		return Claude, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case Cursor:
		return "Cursor"
	case Claude:
		return "Claude"
	default:
		return string(p)
	}
}

func (p Provider) String() string { return string(p) }
