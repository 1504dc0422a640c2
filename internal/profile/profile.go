// Package profile implements the minimal machine-profile registry the
// Response Translator reads from: per-axis steps-per-mm, extruder count,
// and the firmware identity line's machine-type string. Full profile
// auto-discovery and editing are out of scope; this is a read-only
// registry with one built-in default plus an optional JSON override.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
)

// Profile describes the machine-specific constants a few translator
// operations need.
type Profile struct {
	Name            string             `json:"name"`
	MachineType     string             `json:"machine_type"`
	ExtruderCount   int                `json:"extruder_count"`
	StepsPerMM      map[string]float64 `json:"steps_per_mm"`
	TreatFanAsValve bool               `json:"treat_fan_as_valve"`
}

// Default is the built-in fallback profile, used when no machine.json is
// supplied. It mirrors a common single-extruder FDM machine.
var Default = Profile{
	Name:          "default",
	MachineType:   "Generic X3G",
	ExtruderCount: 1,
	StepsPerMM: map[string]float64{
		"X": 88.888889,
		"Y": 88.888889,
		"Z": 400.0,
		"A": 96.275,
		"B": 96.275,
	},
	TreatFanAsValve: true,
}

// Registry holds the active profile and allows swapping it at runtime
// (e.g. on session cleanup, restoring the default).
type Registry struct {
	active Profile
}

// NewRegistry returns a Registry initialized to Default.
func NewRegistry() *Registry {
	return &Registry{active: Default}
}

// Active returns the currently active profile.
func (r *Registry) Active() Profile {
	return r.active
}

// SetActive replaces the active profile.
func (r *Registry) SetActive(p Profile) {
	r.active = p
}

// RestoreDefault resets the active profile to Default, as the Session's
// cleanup does on teardown.
func (r *Registry) RestoreDefault() {
	r.active = Default
}

// LoadFile reads a JSON-encoded Profile from path and makes it active.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile: read %s: %w", path, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("profile: parse %s: %w", path, err)
	}
	if p.StepsPerMM == nil {
		p.StepsPerMM = Default.StepsPerMM
	}
	r.active = p
	return nil
}

// StepsPerMMFor returns the steps-per-mm for axis, falling back to the
// default profile's value for that axis if unset.
func (p Profile) StepsPerMMFor(axis string) float64 {
	if v, ok := p.StepsPerMM[axis]; ok {
		return v
	}
	return Default.StepsPerMM[axis]
}
