// Package pairs holds the saved label/value pairs and the stores that
// persist them.
package pairs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/textnorm"
)

var (
	// ErrStorageUnavailable wraps every failure of the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidPair        = errors.New("invalid pair")
	ErrNotFound           = errors.New("pair not found")
)

// Pair is one saved label/value entry. ID is the generation timestamp in
// milliseconds.
type Pair struct {
	ID    int64  `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

func (p Pair) Validate() error {
	if strings.TrimSpace(p.Label) == "" {
		return fmt.Errorf("%w: label required", ErrInvalidPair)
	}
	if strings.TrimSpace(p.Value) == "" {
		return fmt.Errorf("%w: value required", ErrInvalidPair)
	}
	return nil
}

// NextID returns now in milliseconds, bumped past the largest ID already
// in list so IDs stay unique when two pairs are added within a millisecond.
func NextID(list []Pair, now time.Time) int64 {
	id := now.UnixMilli()
	for _, p := range list {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	return id
}

// Add trims label and value and either updates the value of the pair whose
// normalized label equals label, or appends a new pair. The input slice is
// never modified.
func Add(list []Pair, label, value string, now time.Time) ([]Pair, Pair, bool, error) {
	p := Pair{Label: strings.TrimSpace(label), Value: strings.TrimSpace(value)}
	if err := p.Validate(); err != nil {
		return list, Pair{}, false, err
	}

	out := Clone(list)
	key := textnorm.Normalize(p.Label)
	for i := range out {
		if textnorm.Normalize(out[i].Label) == key {
			out[i].Value = p.Value
			return out, out[i], false, nil
		}
	}

	p.ID = NextID(out, now)
	return append(out, p), p, true, nil
}

// Delete removes the pair with the given id.
func Delete(list []Pair, id int64) ([]Pair, error) {
	out := make([]Pair, 0, len(list))
	found := false
	for _, p := range list {
		if p.ID == id {
			found = true
			continue
		}
		out = append(out, p)
	}
	if !found {
		return list, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return out, nil
}

// Search returns the pairs whose label or value contains the normalized
// query. An empty query returns every pair.
func Search(list []Pair, query string) []Pair {
	q := textnorm.Normalize(query)
	if q == "" {
		return Clone(list)
	}
	out := make([]Pair, 0)
	for _, p := range list {
		if textnorm.Contains(p.Label, q) || textnorm.Contains(p.Value, q) {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the pair whose normalized label equals label.
func Find(list []Pair, label string) (Pair, bool) {
	key := textnorm.Normalize(label)
	for _, p := range list {
		if textnorm.Normalize(p.Label) == key {
			return p, true
		}
	}
	return Pair{}, false
}

func Clone(list []Pair) []Pair {
	out := make([]Pair, len(list))
	copy(out, list)
	return out
}
