package catalog

import (
	"testing"
	"time"
)

func TestBoardKeyComponents(t *testing.T) {
	tests := []struct {
		key     BoardKey
		brand   string
		model   string
		segment Gender
		valid   bool
	}{
		{"burton|custom", "burton", "custom", GenderUnisex, true},
		{"gnu|money|womens", "gnu", "money", GenderWomens, true},
		{"lib tech|orca", "lib tech", "orca", GenderUnisex, true},
		{"justbrand", "justbrand", "", GenderUnisex, false},
		{"|model", "", "model", GenderUnisex, false},
		{"", "", "", GenderUnisex, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if got := tt.key.Brand(); got != tt.brand {
				t.Errorf("Brand() = %q, want %q", got, tt.brand)
			}
			if got := tt.key.Model(); got != tt.model {
				t.Errorf("Model() = %q, want %q", got, tt.model)
			}
			if got := tt.key.Segment(); got != tt.segment {
				t.Errorf("Segment() = %q, want %q", got, tt.segment)
			}
			if got := tt.key.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want Condition
		ok   bool
	}{
		{"New", ConditionNew, true},
		{"brand new", ConditionNew, true},
		{"Blem", ConditionBlemished, true},
		{"CLOSEOUT", ConditionCloseout, true},
		{"clearance", ConditionCloseout, true},
		{"demo", ConditionUsed, true},
		{"pre-owned", ConditionUsed, true},
		{"mint!", ConditionUnknown, false},
		{"", ConditionUnknown, false},
	}
	for _, tt := range tests {
		got, ok := ParseCondition(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCondition(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		in   string
		want Gender
		ok   bool
	}{
		{"Women's", GenderWomens, true},
		{"ladies", GenderWomens, true},
		{"mens", GenderUnisex, true},
		{"youth", GenderKids, true},
		{"boys", GenderKids, true},
		{"freestyle", GenderUnisex, false},
	}
	for _, tt := range tests {
		got, ok := ParseGender(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseGender(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBoardSpecs(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	board := NewBoard("gnu|money", now)

	if board.Brand != "gnu" || board.Model != "money" {
		t.Fatalf("NewBoard components = %q/%q", board.Brand, board.Model)
	}
	if board.Spec(SpecFlex) != nil {
		t.Fatal("new board has no resolved specs")
	}

	board.SetSpec(SpecFlex, &ResolvedSpec{Field: SpecFlex, Value: "soft"})
	if spec := board.Spec(SpecFlex); spec == nil || spec.Value != "soft" {
		t.Fatalf("Spec(flex) = %+v", spec)
	}

	board.SetSpec(SpecFlex, nil)
	if board.Spec(SpecFlex) != nil {
		t.Fatal("nil SetSpec must clear the field")
	}
}

func TestTierValidity(t *testing.T) {
	for _, tier := range Tiers() {
		if !tier.IsValid() {
			t.Errorf("Tiers() entry %q not valid", tier)
		}
	}
	if Tier("oracle").IsValid() {
		t.Error("unknown tier reported valid")
	}
}
