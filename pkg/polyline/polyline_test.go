package polyline

import (
	"math"
	"testing"
)

func TestDecode_GoogleReferenceVector(t *testing.T) {
	// Reference example from the polyline algorithm documentation.
	coords := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	want := []Coordinate{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}

	if len(coords) != len(want) {
		t.Fatalf("expected %d coordinates, got %d", len(want), len(coords))
	}
	for i, w := range want {
		if math.Abs(coords[i].Lat-w.Lat) > 1e-5 || math.Abs(coords[i].Lng-w.Lng) > 1e-5 {
			t.Errorf("coordinate %d: expected %+v, got %+v", i, w, coords[i])
		}
	}
}

func TestEncode_GoogleReferenceVector(t *testing.T) {
	encoded := Encode([]Coordinate{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	})

	if encoded != "_p~iF~ps|U_ulLnnqC_mqNvxq`@" {
		t.Errorf("unexpected encoding %q", encoded)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := []Coordinate{
		{Lat: 52.370216, Lng: 4.895168},
		{Lat: 52.368673, Lng: 4.891089},
		{Lat: 52.366521, Lng: 4.884782},
		{Lat: -33.924870, Lng: 18.424055},
	}

	decoded := Decode(Encode(original))

	if len(decoded) != len(original) {
		t.Fatalf("expected %d coordinates, got %d", len(original), len(decoded))
	}
	for i, orig := range original {
		if math.Abs(decoded[i].Lat-orig.Lat) > 1e-5 || math.Abs(decoded[i].Lng-orig.Lng) > 1e-5 {
			t.Errorf("coordinate %d: expected %+v, got %+v", i, orig, decoded[i])
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	if coords := Decode(""); coords != nil {
		t.Errorf("expected nil for empty input, got %v", coords)
	}
}

func TestEncode_Empty(t *testing.T) {
	if encoded := Encode(nil); encoded != "" {
		t.Errorf("expected empty string for nil input, got %q", encoded)
	}
}

func TestEncode_SinglePoint(t *testing.T) {
	encoded := Encode([]Coordinate{{Lat: 0, Lng: 0.001}})
	decoded := Decode(encoded)

	if len(decoded) != 1 {
		t.Fatalf("expected 1 coordinate, got %d", len(decoded))
	}
	if math.Abs(decoded[0].Lng-0.001) > 1e-5 {
		t.Errorf("expected lng 0.001, got %f", decoded[0].Lng)
	}
}
