package device

import "errors"

// ErrNoDeviceFound means no candidate was available and no override given.
var ErrNoDeviceFound = errors.New("no device found")

// tiers is the selection priority, best first.
var tiers = []Reachability{
	ReachabilityActive,
	ReachabilityRecentlyDisconnected,
	ReachabilityOfflineKnown,
}

// Select picks the device to deploy to. A non-empty override is trusted as-is
// for both identifier namespaces. Otherwise the first candidate of the best
// populated reachability tier wins, in the order the catalog returned them.
// Records with an unrecognized reachability rank below every tier.
func Select(candidates []Record, override string) (Identity, error) {
	if override != "" {
		return Identity{Core: override, Legacy: override}, nil
	}
	for _, tier := range tiers {
		for _, c := range candidates {
			if c.Reachability == tier {
				return IdentityOf(c), nil
			}
		}
	}
	if len(candidates) > 0 {
		return IdentityOf(candidates[0]), nil
	}
	return Identity{}, ErrNoDeviceFound
}
