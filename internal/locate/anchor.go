package locate

// DisabledZ is the reserved z-coordinate marking an anchor as
// administratively disabled. A disabled anchor never contributes a
// range, regardless of what the tag reports for its slot.
const DisabledZ = -77.77

// AnchorSlots is the number of anchor slots in a telemetry frame.
const AnchorSlots = 4

// Anchor is a fixed reference node with known coordinates (meters).
type Anchor struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Disabled reports whether the anchor carries the disabled sentinel.
func (a Anchor) Disabled() bool {
	return a.Z == DisabledZ
}

// Position is a tag position estimate in anchor coordinates (x, y, z).
type Position [3]float64

// Filter pairs the configured anchors with one frame's raw distances
// and keeps the pairs usable for solving. A pair survives iff the
// distance was reported (non-nil), is strictly positive, and the
// anchor is not disabled. Slot order is preserved.
//
// The two returned slices are parallel; len(anchors) is the valid
// anchor count N.
func Filter(anchors []Anchor, dists [AnchorSlots]*float64) (valid []Anchor, validDists []float64) {
	if len(anchors) != AnchorSlots {
		return nil, nil
	}
	for i, a := range anchors {
		d := dists[i]
		if d == nil || *d <= 0 || a.Disabled() {
			continue
		}
		valid = append(valid, a)
		validDists = append(validDists, *d)
	}
	return valid, validDists
}
