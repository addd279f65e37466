// Package device discovers deploy targets through Apple's device tooling,
// picks one, and drives install and launch on it.
//
// A physical device carries two identifiers: the CoreDevice identifier that
// devicectl's install and launch commands take, and the hardware UDID that
// xcodebuild's -destination selector takes. They name the same device but are
// not interchangeable, so both travel together from the catalog query to the
// commands that need them.
package device

import "fmt"

// PlatformIOS is the only platform sideload deploys to today.
const PlatformIOS = "iOS"

// Destination is the kind of target a deployment aims at.
type Destination string

const (
	DestinationDevice    Destination = "device"
	DestinationSimulator Destination = "simulator"
)

// ParseDestination validates a destination name.
func ParseDestination(s string) (Destination, error) {
	switch Destination(s) {
	case DestinationDevice, DestinationSimulator:
		return Destination(s), nil
	}
	return "", fmt.Errorf("unknown destination %q (want %q or %q)", s, DestinationDevice, DestinationSimulator)
}

// Reachability classifies how ready a device is to accept commands.
type Reachability string

const (
	ReachabilityActive               Reachability = "active"
	ReachabilityRecentlyDisconnected Reachability = "recently-disconnected"
	ReachabilityOfflineKnown         Reachability = "offline"
)

// Record is the normalized view of one device from a single catalog query.
// Records are values; nothing mutates them after parsing.
type Record struct {
	CoreID       string       `json:"core_id"`
	LegacyID     string       `json:"legacy_id"`
	Name         string       `json:"name"`
	Platform     string       `json:"platform"`
	Physical     bool         `json:"physical"`
	Reachability Reachability `json:"reachability"`
}

// String returns a display string for the device.
func (r Record) String() string {
	kind := "simulator"
	if r.Physical {
		kind = "device"
	}
	return fmt.Sprintf("%s (%s %s, %s)", r.Name, r.Platform, kind, r.Reachability)
}

// Identity is the resolved pair of identifiers for the chosen device.
type Identity struct {
	Core   string
	Legacy string
	Name   string
}

// IdentityOf returns the identifier pair carried by r.
func IdentityOf(r Record) Identity {
	return Identity{Core: r.CoreID, Legacy: r.LegacyID, Name: r.Name}
}

// Display names the identity for operator output.
func (id Identity) Display() string {
	if id.Name != "" {
		return fmt.Sprintf("%s [%s]", id.Name, id.Core)
	}
	return id.Core
}
