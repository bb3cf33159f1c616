// Package catalog prices subscription packages.
// models.go describes package tiers and billing durations.
package catalog

import (
	"strings"

	"alchemyst.ke/billing/internal/common"
)

// Tier is the package quality level.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierElite   Tier = "elite"
)

// Priority orders tiers for upgrades: basic=1 < premium=2 < elite=3.
// Unknown tiers have priority 0.
func (t Tier) Priority() int {
	switch t {
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	case TierElite:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool { return t.Priority() > 0 }

// ParseTier resolves a tier name coming from a request.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", common.ErrUnknownTier
	}
	return t, nil
}

// Duration is the billing period of a package.
type Duration string

const (
	Weekly  Duration = "weekly"
	Monthly Duration = "monthly"
)

// Valid reports whether d is weekly or monthly.
func (d Duration) Valid() bool { return d == Weekly || d == Monthly }

// Ptr returns a pointer to a copy of d.
func (d Duration) Ptr() *Duration { return &d }

// ParseDuration resolves a duration name coming from a request.
func ParseDuration(s string) (Duration, error) {
	d := Duration(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", common.ErrUnknownDuration
	}
	return d, nil
}
