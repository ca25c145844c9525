package uwb

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// specLine is a full 23-field frame: two ranges present, two absent.
const specLine = "mi,1.0,2.0,3.0,null,null,0,0,0,0,0.1,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,0,TAG1"

func parseKind(t *testing.T, err error) ParseErrorKind {
	t.Helper()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err=%v want *ParseError", err)
	}
	return pe.Kind
}

func TestParse_FullFrame(t *testing.T) {
	s, err := Parse(specLine)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if s.Timestamp != 1.0 {
		t.Fatalf("timestamp=%v want 1.0", s.Timestamp)
	}
	if s.Distances[0] == nil || *s.Distances[0] != 2.0 {
		t.Fatalf("distance[0]=%v want 2.0", s.Distances[0])
	}
	if s.Distances[1] == nil || *s.Distances[1] != 3.0 {
		t.Fatalf("distance[1]=%v want 3.0", s.Distances[1])
	}
	if s.Distances[2] != nil || s.Distances[3] != nil {
		t.Fatalf("distances[2,3]=%v,%v want nil,nil", s.Distances[2], s.Distances[3])
	}
	if s.Accel != [3]float64{0.1, 0.2, 9.8} {
		t.Fatalf("accel=%v", s.Accel)
	}
	if s.Gyro != [3]float64{0.01, 0.02, 0.03} {
		t.Fatalf("gyro=%v", s.Gyro)
	}
	if s.Mag != [3]float64{10, 20, 30} {
		t.Fatalf("mag=%v", s.Mag)
	}
	if s.Orientation != (Orientation{}) {
		t.Fatalf("orientation=%v want zero", s.Orientation)
	}
	if s.TagID != "TAG1" {
		t.Fatalf("tag_id=%q want TAG1", s.TagID)
	}
	if s.Position != [3]float64{} {
		t.Fatalf("position=%v want zero before localization", s.Position)
	}
}

func TestParse_OrientationFields(t *testing.T) {
	line := "mi,2.5,1,1,1,1,0,0,0,0,0,0,0,0,0,0,0,0,0,5.5,-3.25,181.0,T2"
	s, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := Orientation{Pitch: 5.5, Roll: -3.25, Yaw: 181.0}
	if s.Orientation != want {
		t.Fatalf("orientation=%v want %v", s.Orientation, want)
	}
}

func TestParse_Deterministic(t *testing.T) {
	a, errA := Parse(specLine)
	b, errB := Parse(specLine)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two parses differ:\n%+v\n%+v", a, b)
	}
}

func TestParse_NonTelemetryLineIsNoise(t *testing.T) {
	for _, line := range []string{"", "hello", "$GPRMC,1,2,3", "mi", "MI,1.0"} {
		_, err := Parse(line)
		if err == nil {
			t.Fatalf("Parse(%q) accepted a non-telemetry line", line)
		}
		if kind := parseKind(t, err); kind != KindMalformedPrefix {
			t.Fatalf("Parse(%q) kind=%v want KindMalformedPrefix", line, kind)
		}
		if !IsNoise(err) {
			t.Fatalf("Parse(%q) err=%v not classified as noise", line, err)
		}
	}
}

func TestParse_FieldCountMismatch(t *testing.T) {
	// 22 fields: one short of the minimum.
	line := "mi,1.0,2.0,3.0,null,null,0,0,0,0,0.1,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,0"
	_, err := Parse(line)
	if kind := parseKind(t, err); kind != KindFieldCountMismatch {
		t.Fatalf("kind=%v want KindFieldCountMismatch", kind)
	}
	if IsNoise(err) {
		t.Fatalf("short frame misclassified as noise")
	}
}

func TestParse_NumericFailureDropsWholeFrame(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"timestamp", "mi,abc,2.0,3.0,null,null,0,0,0,0,0.1,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,0,TAG1"},
		{"distance", "mi,1.0,2.0,bogus,null,null,0,0,0,0,0.1,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,0,TAG1"},
		{"accel", "mi,1.0,2.0,3.0,null,null,0,0,0,0,x,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,0,TAG1"},
		{"yaw", "mi,1.0,2.0,3.0,null,null,0,0,0,0,0.1,0.2,9.8,0.01,0.02,0.03,10,20,30,0,0,nan?,TAG1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse(tc.line)
			if kind := parseKind(t, err); kind != KindNumericParseFailure {
				t.Fatalf("kind=%v want KindNumericParseFailure", kind)
			}
			if !reflect.DeepEqual(s, Sample{}) {
				t.Fatalf("partial sample returned alongside error: %+v", s)
			}
		})
	}
}

func TestParse_AbsenceTokenIsNotAFailure(t *testing.T) {
	line := "mi,1.0,null,null,null,null,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,T"
	s, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	for i, d := range s.Distances {
		if d != nil {
			t.Fatalf("distance[%d]=%v want nil", i, *d)
		}
	}
}

func TestParse_ExtraFieldsTolerated(t *testing.T) {
	s, err := Parse(specLine + ",extra,fields,9")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if s.TagID != "TAG1" {
		t.Fatalf("tag_id=%q want TAG1", s.TagID)
	}
}

func TestParse_NegativeDistanceSurvivesParsing(t *testing.T) {
	// Validity is the filter's call, not the parser's.
	line := "mi,1.0,-4.5,3.0,null,null,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,T"
	s, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if s.Distances[0] == nil || math.Abs(*s.Distances[0]+4.5) > 0 {
		t.Fatalf("distance[0]=%v want -4.5", s.Distances[0])
	}
}
