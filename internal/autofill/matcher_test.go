package autofill

import (
	"testing"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

func TestEligibility(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  Exclusion
	}{
		{"empty text", Field{Type: "text"}, Eligible},
		{"whitespace value", Field{Type: "text", Value: "   "}, Eligible},
		{"has value", Field{Type: "text", Value: "555"}, ExcludedHasValue},
		{"hidden", Field{Type: "hidden"}, ExcludedType},
		{"submit upper", Field{Type: "SUBMIT"}, ExcludedType},
		{"button", Field{Type: "button"}, ExcludedType},
		{"reset", Field{Type: "reset"}, ExcludedType},
		{"file", Field{Type: "file"}, ExcludedType},
		{"image", Field{Type: "image"}, ExcludedType},
		{"disabled", Field{Type: "text", Disabled: true}, ExcludedDisabled},
		{"readonly", Field{Type: "text", ReadOnly: true}, ExcludedReadOnly},
		{"textarea", Field{Kind: KindTextarea, Type: "textarea"}, Eligible},
		{"hidden with value counts as value", Field{Type: "hidden", Value: "tok"}, ExcludedHasValue},
	}
	for _, tt := range tests {
		if got := Eligibility(tt.field); got != tt.want {
			t.Errorf("%s: Eligibility = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMatchFacet(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		label string
		want  Facet
	}{
		{"id substring", Field{ID: "user_email_address"}, "email", FacetID},
		{"placeholder", Field{Placeholder: "Enter your Email"}, "email", FacetPlaceholder},
		{"name", Field{Name: "customer[phone]"}, "Phone", FacetName},
		{"label text", Field{LabelText: "  Full \n Name *"}, "full name", FacetLabel},
		{"id wins over placeholder", Field{ID: "email", Placeholder: "email"}, "email", FacetID},
		{"no match", Field{ID: "phone", Placeholder: "Phone"}, "email", FacetNone},
		{"empty label", Field{ID: "email"}, "  ", FacetNone},
		{"label longer than facet", Field{ID: "name"}, "full name", FacetNone},
	}
	for _, tt := range tests {
		if got := MatchFacet(tt.field, tt.label); got != tt.want {
			t.Errorf("%s: MatchFacet = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSelectPairFirstMatchWins(t *testing.T) {
	f := Field{ID: "full_name", LabelText: "Full name"}
	list := []pairs.Pair{
		{ID: 1, Label: "name", Value: "short"},
		{ID: 2, Label: "full name", Value: "long"},
	}
	p, _, ok := SelectPair(f, list)
	if !ok || p.ID != 1 {
		t.Fatalf("SelectPair = %+v %v, want pair 1", p, ok)
	}

	list[0], list[1] = list[1], list[0]
	p, facet, ok := SelectPair(f, list)
	if !ok || p.ID != 2 {
		t.Fatalf("SelectPair reversed = %+v %v, want pair 2", p, ok)
	}
	if facet != FacetLabel {
		t.Errorf("facet = %q, want label (id has an underscore)", facet)
	}
}

func TestPlanFillExcludedNeverMatched(t *testing.T) {
	list := []pairs.Pair{{ID: 1, Label: "email", Value: "a@b.com"}}
	fields := []Field{
		{Ref: "a", Type: "hidden", ID: "email"},
		{Ref: "b", Type: "submit", ID: "email"},
		{Ref: "c", Type: "text", ID: "email", Disabled: true},
		{Ref: "d", Type: "text", ID: "email", ReadOnly: true},
		{Ref: "e", Type: "email", ID: "email"},
		{Ref: "f", Type: "text", ID: "email", Value: "x"},
		{Ref: "g", Type: "text", ID: "city"},
	}
	plan := PlanFill(fields, list)
	if len(plan.Assignments) != 1 || plan.Assignments[0].Field.Ref != "e" {
		t.Fatalf("assignments = %+v", plan.Assignments)
	}
	if plan.Skipped != 1 || plan.Excluded != 4 || plan.Unmatched != 1 || plan.Candidates != 7 {
		t.Errorf("plan counters = %+v", plan)
	}
}
