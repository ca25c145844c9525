package uwb

import (
	"fmt"
	"strconv"
	"strings"

	"uwbd/internal/locate"
)

// FramePrefix opens every telemetry frame. Anything else on the line
// stream is interleaved chatter from the tag firmware.
const FramePrefix = "mi,"

// absenceToken is the literal a tag emits for an anchor slot that
// produced no range this frame.
const absenceToken = "null"

// minFields is the minimum comma-separated field count of a frame.
const minFields = 23

// Orientation is the tag's attitude in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Sample is one decoded telemetry frame. Distances holds one entry per
// anchor slot; nil marks a slot whose range was absent. Position is
// zero until localization fills it in.
type Sample struct {
	Timestamp float64                      `json:"timestamp"`
	Distances [locate.AnchorSlots]*float64 `json:"distances"`

	Accel [3]float64 `json:"acc"`
	Gyro  [3]float64 `json:"gyro"`
	Mag   [3]float64 `json:"mag"`

	Orientation Orientation `json:"orientation"`

	TagID    string          `json:"tag_id"`
	Position locate.Position `json:"position"`
}

// ParseErrorKind classifies why a frame was rejected.
type ParseErrorKind int

const (
	// KindMalformedPrefix: the line is not a telemetry frame at all.
	KindMalformedPrefix ParseErrorKind = iota
	// KindFieldCountMismatch: a frame with fewer than minFields fields.
	KindFieldCountMismatch
	// KindNumericParseFailure: a required numeric field failed to parse.
	KindNumericParseFailure
)

func (k ParseErrorKind) String() string {
	switch k {
	case KindMalformedPrefix:
		return "malformed prefix"
	case KindFieldCountMismatch:
		return "field count mismatch"
	case KindNumericParseFailure:
		return "numeric parse failure"
	default:
		return fmt.Sprintf("parse error kind %d", int(k))
	}
}

// ParseError rejects a whole frame; no partial Sample ever accompanies
// one.
type ParseError struct {
	Kind ParseErrorKind
	// Field is the offending field index for numeric failures, -1
	// otherwise.
	Field  int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "uwb: " + e.Kind.String()
	}
	return fmt.Sprintf("uwb: %s: %s", e.Kind, e.Detail)
}

// IsNoise reports whether err marks a non-telemetry line. Such lines
// are expected on a shared transport and are dropped without logging.
func IsNoise(err error) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Kind == KindMalformedPrefix
}

// Parse decodes one raw line into a Sample. It is pure: the same line
// always yields the same Sample or the same ParseError kind.
//
// Frame layout (comma separated, >= 23 fields):
//
//	1:     timestamp (s)
//	2..5:  anchor slot ranges A0..A3, each a number or "null"
//	10..12 acceleration x/y/z
//	13..15 angular rate x/y/z
//	16..18 magnetic field x/y/z
//	19..21 pitch/roll/yaw (deg)
//	22:    tag identifier
func Parse(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, FramePrefix) {
		return Sample{}, &ParseError{Kind: KindMalformedPrefix, Field: -1}
	}

	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		return Sample{}, &ParseError{
			Kind:   KindFieldCountMismatch,
			Field:  -1,
			Detail: fmt.Sprintf("%d of %d fields", len(fields), minFields),
		}
	}

	var s Sample
	var err error
	if s.Timestamp, err = parseNumeric(fields, 1); err != nil {
		return Sample{}, err
	}

	for slot := 0; slot < locate.AnchorSlots; slot++ {
		i := 2 + slot
		if strings.TrimSpace(fields[i]) == absenceToken {
			continue
		}
		d, err := parseNumeric(fields, i)
		if err != nil {
			return Sample{}, err
		}
		v := d
		s.Distances[slot] = &v
	}

	if err = parseTriplet(fields, 10, &s.Accel); err != nil {
		return Sample{}, err
	}
	if err = parseTriplet(fields, 13, &s.Gyro); err != nil {
		return Sample{}, err
	}
	if err = parseTriplet(fields, 16, &s.Mag); err != nil {
		return Sample{}, err
	}

	var angle [3]float64
	if err = parseTriplet(fields, 19, &angle); err != nil {
		return Sample{}, err
	}
	s.Orientation = Orientation{Pitch: angle[0], Roll: angle[1], Yaw: angle[2]}

	s.TagID = strings.TrimSpace(fields[22])
	return s, nil
}

func parseNumeric(fields []string, i int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
	if err != nil {
		return 0, &ParseError{
			Kind:   KindNumericParseFailure,
			Field:  i,
			Detail: fmt.Sprintf("field %d %q", i, fields[i]),
		}
	}
	return v, nil
}

func parseTriplet(fields []string, start int, dst *[3]float64) error {
	for j := 0; j < 3; j++ {
		v, err := parseNumeric(fields, start+j)
		if err != nil {
			return err
		}
		dst[j] = v
	}
	return nil
}
