package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// ErrRestrictedPage is returned for pages a fill pass must not run on.
var ErrRestrictedPage = errors.New("restricted page")

// Restrictions matches page URLs against glob patterns such as
// "chrome://*".
type Restrictions struct {
	patterns []string
	globs    []glob.Glob
}

func NewRestrictions(patterns []string) (*Restrictions, error) {
	r := &Restrictions{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("restricted url pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, p)
		r.globs = append(r.globs, g)
	}
	return r, nil
}

// Match returns the first pattern matching url.
func (r *Restrictions) Match(url string) (string, bool) {
	if r == nil {
		return "", false
	}
	u := strings.ToLower(strings.TrimSpace(url))
	for i, g := range r.globs {
		if g.Match(u) {
			return r.patterns[i], true
		}
	}
	return "", false
}

// Check returns ErrRestrictedPage when url may not be filled.
func (r *Restrictions) Check(url string) error {
	if p, ok := r.Match(url); ok {
		return fmt.Errorf("%w: %s matches %s", ErrRestrictedPage, url, p)
	}
	return nil
}
