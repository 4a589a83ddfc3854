package htmldoc

import (
	"fmt"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type declaration struct {
	property  string
	value     string
	important bool
}

// parseStyle reads an inline style attribute. The parser drops the value of
// a final declaration that has no terminating semicolon, so one is added.
func parseStyle(style string) ([]declaration, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		return nil, nil
	}
	if !strings.HasSuffix(style, ";") {
		style += ";"
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return nil, fmt.Errorf("parse inline style: %w", err)
	}
	out := make([]declaration, 0, len(decls))
	for _, d := range decls {
		if strings.TrimSpace(d.Value) == "" {
			continue
		}
		out = append(out, declaration{property: strings.ToLower(d.Property), value: d.Value, important: d.Important})
	}
	return out, nil
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.property + ": " + d.value
		if d.important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}

// setStyle sets one inline style property of n and returns its previous
// value. An empty value removes the property.
func setStyle(n *html.Node, property, value string) (string, error) {
	decls, err := parseStyle(attr(n, "style"))
	if err != nil {
		return "", err
	}
	property = strings.ToLower(property)

	prev := ""
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.property != property {
			out = append(out, d)
			continue
		}
		prev = d.value
		if value != "" && !replaced {
			out = append(out, declaration{property: property, value: value})
			replaced = true
		}
	}
	if value != "" && !replaced {
		out = append(out, declaration{property: property, value: value})
	}

	if len(out) == 0 {
		removeAttr(n, "style")
	} else {
		setAttr(n, "style", formatStyle(out))
	}
	return prev, nil
}
