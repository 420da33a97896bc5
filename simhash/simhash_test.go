package simhash

import (
	"reflect"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	text := "Linen shirt in sand, cut from European flax"
	if Fingerprint(text) != Fingerprint(text) {
		t.Error("identical texts produced different fingerprints")
	}
}

func TestFingerprint_IgnoresCaseAndPunctuation(t *testing.T) {
	a := Fingerprint("Linen Shirt - Sand. Free shipping!")
	b := Fingerprint("linen shirt sand free shipping")
	if a != b {
		t.Errorf("normalised texts differ: distance %d", Distance(a, b))
	}
}

func TestFingerprint_SimilarAndDifferent(t *testing.T) {
	base := "our breathable linen shirt is cut from european flax and garment washed for softness it ships within two days"
	variant := "our breathable linen shirt is cut from european flax and garment washed for softness it ships within three days"
	other := "stainless steel water bottle keeps drinks cold for twenty four hours and hot for twelve with a leak proof lid"

	if d := Distance(Fingerprint(base), Fingerprint(variant)); d > 12 {
		t.Errorf("near-identical texts distance = %d, want small", d)
	}
	if d := Distance(Fingerprint(base), Fingerprint(other)); d < 8 {
		t.Errorf("unrelated texts distance = %d, want large", d)
	}
}

func TestFingerprint_Empty(t *testing.T) {
	for _, in := range []string{"", "   \t\n", "!!! ---"} {
		if fp := Fingerprint(in); fp != 0 {
			t.Errorf("Fingerprint(%q) = %d, want 0", in, fp)
		}
	}
	if Fingerprint("hello") == 0 {
		t.Error("single word should produce a non-zero fingerprint")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestUnique(t *testing.T) {
	a := Fingerprint("linen shirt sand breathable european flax")
	b := Fingerprint("stainless steel bottle keeps drinks cold")

	tests := []struct {
		name string
		fps  []uint64
		want []int
	}{
		{"empty", nil, []int{}},
		{"distinct", []uint64{a, b}, []int{0, 1}},
		{"exact duplicate dropped", []uint64{a, b, a}, []int{0, 1}},
		{"one bit off dropped", []uint64{a, a ^ 1}, []int{0}},
		{"zero always kept", []uint64{0, 0, a}, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unique(tt.fps, NearDuplicateDistance)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Unique() = %v, want %v", got, tt.want)
			}
		})
	}
}
