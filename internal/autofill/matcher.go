package autofill

import (
	"strings"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/textnorm"
)

// Exclusion says why a candidate is not fillable.
type Exclusion int

const (
	Eligible Exclusion = iota
	// ExcludedHasValue is the only exclusion counted as skipped.
	ExcludedHasValue
	ExcludedType
	ExcludedDisabled
	ExcludedReadOnly
)

func (e Exclusion) String() string {
	switch e {
	case Eligible:
		return "eligible"
	case ExcludedHasValue:
		return "has-value"
	case ExcludedType:
		return "type"
	case ExcludedDisabled:
		return "disabled"
	case ExcludedReadOnly:
		return "readonly"
	}
	return "unknown"
}

var skipTypes = map[string]bool{
	"submit": true,
	"button": true,
	"reset":  true,
	"file":   true,
	"image":  true,
	"hidden": true,
}

// Eligibility classifies f. The checks run in a fixed order, so a hidden
// input that carries a value still counts as skipped.
func Eligibility(f Field) Exclusion {
	switch {
	case strings.TrimSpace(f.Value) != "":
		return ExcludedHasValue
	case skipTypes[strings.ToLower(f.Type)]:
		return ExcludedType
	case f.Disabled:
		return ExcludedDisabled
	case f.ReadOnly:
		return ExcludedReadOnly
	}
	return Eligible
}

// Facet names the field attribute a label matched on.
type Facet string

const (
	FacetNone        Facet = ""
	FacetID          Facet = "id"
	FacetName        Facet = "name"
	FacetLabel       Facet = "label"
	FacetPlaceholder Facet = "placeholder"
)

// MatchFacet returns the first facet of f, in the order id, name, label
// text, placeholder, whose normalized text contains the normalized label.
func MatchFacet(f Field, label string) Facet {
	if textnorm.Normalize(label) == "" {
		return FacetNone
	}
	switch {
	case textnorm.Contains(f.ID, label):
		return FacetID
	case textnorm.Contains(f.Name, label):
		return FacetName
	case textnorm.Contains(f.LabelText, label):
		return FacetLabel
	case textnorm.Contains(f.Placeholder, label):
		return FacetPlaceholder
	}
	return FacetNone
}

func Matches(f Field, label string) bool {
	return MatchFacet(f, label) != FacetNone
}

// SelectPair returns the first pair in list order whose label matches f.
func SelectPair(f Field, list []pairs.Pair) (pairs.Pair, Facet, bool) {
	for _, p := range list {
		if facet := MatchFacet(f, p.Label); facet != FacetNone {
			return p, facet, true
		}
	}
	return pairs.Pair{}, FacetNone, false
}

// Assignment binds one eligible field to the pair that fills it.
type Assignment struct {
	Field Field
	Pair  pairs.Pair
	Facet Facet
}

// Plan is the outcome of matching one document snapshot.
type Plan struct {
	Candidates  int
	Skipped     int
	Excluded    int
	Unmatched   int
	Assignments []Assignment
}

// PlanFill decides, for every field, whether it is filled and by which
// pair. Each field appears in at most one assignment.
func PlanFill(fields []Field, list []pairs.Pair) Plan {
	plan := Plan{Candidates: len(fields)}
	for _, f := range fields {
		switch Eligibility(f) {
		case Eligible:
		case ExcludedHasValue:
			plan.Skipped++
			continue
		default:
			plan.Excluded++
			continue
		}
		p, facet, ok := SelectPair(f, list)
		if !ok {
			plan.Unmatched++
			continue
		}
		plan.Assignments = append(plan.Assignments, Assignment{Field: f, Pair: p, Facet: facet})
	}
	return plan
}
