// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weaviateindex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
)

// fieldKind classifies how a filter atom's value should be sent to
// Weaviate. The set mirrors compose.allowedFields exactly: the filter
// translator only ever emits fields from that whitelist.
type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindInt
	kindBool
	kindDate
	kindTextArray
)

var fieldKinds = map[string]fieldKind{
	"make": kindText, "model": kindText, "derivative": kindText,
	"price": kindNumber, "mileage": kindInt,
	"bodyType": kindText, "fuelType": kindText, "transmissionType": kindText,
	"colour": kindText, "engineSize": kindNumber, "numberOfDoors": kindInt,
	"saleLocation": kindText, "channel": kindText,
	"registrationDate": kindDate, "motExpiryDate": kindDate, "lastServiceDate": kindDate,
	"features": kindTextArray, "declarations": kindTextArray,
	"serviceHistoryPresent": kindBool, "numberOfServices": kindInt,
	"numberOfOwners": kindInt, "description": kindText,
}

var opOperator = map[string]filters.WhereOperator{
	"eq": filters.Equal, "ne": filters.NotEqual,
	"gt": filters.GreaterThan, "ge": filters.GreaterThanEqual,
	"lt": filters.LessThan, "le": filters.LessThanEqual,
}

var (
	comparisonAtom = regexp.MustCompile(`^(\w+) (eq|ne|gt|ge|lt|le) (.+)$`)
	collectionAtom = regexp.MustCompile(`^(\w+)/any\(x: x eq (.+)\)$`)
	containsAtom   = regexp.MustCompile(`^match\((.+), (\w+)\)$`)
	inAtom         = regexp.MustCompile(`^in\((\w+), "([^"]*)", ","\)$`)
	isoDate        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
)

// parseFilterExpr translates compose's rendered filter expression (see
// compose.renderGroups/formatConstraint) into a Weaviate where filter. An
// empty expression returns a nil builder and no error: the caller skips
// WithWhere entirely in that case.
func parseFilterExpr(expr string) (*filters.WhereBuilder, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	groups := splitTopLevel(expr, " and ")
	builders := make([]*filters.WhereBuilder, 0, len(groups))
	for _, g := range groups {
		b, err := parseGroup(g)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	if len(builders) == 1 {
		return builders[0], nil
	}
	return filters.Where().WithOperator(filters.And).WithOperands(builders), nil
}

// parseGroup parses one and-joined top-level segment, which is either a
// single atom or a parenthesized and/or-joined list of atoms.
func parseGroup(segment string) (*filters.WhereBuilder, error) {
	inner := segment
	if strings.HasPrefix(segment, "(") && strings.HasSuffix(segment, ")") && balanced(segment) {
		inner = strings.TrimSpace(segment[1 : len(segment)-1])
	}

	if parts := splitTopLevel(inner, " or "); len(parts) > 1 {
		return combineAtoms(parts, filters.Or)
	}
	if parts := splitTopLevel(inner, " and "); len(parts) > 1 {
		return combineAtoms(parts, filters.And)
	}
	return parseAtom(inner)
}

func combineAtoms(parts []string, op filters.WhereOperator) (*filters.WhereBuilder, error) {
	operands := make([]*filters.WhereBuilder, 0, len(parts))
	for _, p := range parts {
		b, err := parseAtom(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		operands = append(operands, b)
	}
	return filters.Where().WithOperator(op).WithOperands(operands), nil
}

func parseAtom(atom string) (*filters.WhereBuilder, error) {
	atom = strings.TrimSpace(atom)

	if m := inAtom.FindStringSubmatch(atom); m != nil {
		field, raw := m[1], m[2]
		values := strings.Split(raw, ",")
		operands := make([]*filters.WhereBuilder, 0, len(values))
		for _, v := range values {
			b, err := valueBuilder(field, strings.TrimSpace(v))
			if err != nil {
				return nil, err
			}
			operands = append(operands, b.WithOperator(filters.Equal))
		}
		return filters.Where().WithOperator(filters.Or).WithOperands(operands), nil
	}

	if m := collectionAtom.FindStringSubmatch(atom); m != nil {
		field, lit := m[1], m[2]
		b, err := valueBuilder(field, lit)
		if err != nil {
			return nil, err
		}
		return b.WithOperator(filters.Equal), nil
	}

	if m := containsAtom.FindStringSubmatch(atom); m != nil {
		lit, field := m[1], m[2]
		b, err := valueBuilder(field, lit)
		if err != nil {
			return nil, err
		}
		return b.WithOperator(filters.Like), nil
	}

	if m := comparisonAtom.FindStringSubmatch(atom); m != nil {
		field, opWord, lit := m[1], m[2], m[3]
		op, ok := opOperator[opWord]
		if !ok {
			return nil, fmt.Errorf("weaviateindex: unknown filter operator %q", opWord)
		}
		b, err := valueBuilder(field, lit)
		if err != nil {
			return nil, err
		}
		return b.WithOperator(op), nil
	}

	return nil, fmt.Errorf("weaviateindex: cannot parse filter atom %q", atom)
}

// valueBuilder returns a WhereBuilder scoped to field with its value set
// from lit, leaving the caller to attach WithOperator.
func valueBuilder(field, lit string) (*filters.WhereBuilder, error) {
	b := filters.Where().WithPath([]string{field})
	kind, ok := fieldKinds[field]
	if !ok {
		return nil, fmt.Errorf("weaviateindex: unrecognized filter field %q", field)
	}

	switch kind {
	case kindText, kindTextArray:
		return b.WithValueString(unquote(lit)), nil
	case kindBool:
		return b.WithValueBoolean(lit == "true"), nil
	case kindDate:
		if !isoDate.MatchString(lit) {
			return nil, fmt.Errorf("weaviateindex: %q is not a valid date literal for %s", lit, field)
		}
		t, err := time.Parse(time.RFC3339, lit)
		if err != nil {
			return nil, fmt.Errorf("weaviateindex: parsing date literal %q: %w", lit, err)
		}
		return b.WithValueDate(t), nil
	case kindInt:
		n, err := strconv.ParseInt(unquote(lit), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("weaviateindex: %q is not a valid integer for %s: %w", lit, field, err)
		}
		return b.WithValueInt(n), nil
	case kindNumber:
		n, err := strconv.ParseFloat(unquote(lit), 64)
		if err != nil {
			return nil, fmt.Errorf("weaviateindex: %q is not a valid number for %s: %w", lit, field, err)
		}
		return b.WithValueNumber(n), nil
	default:
		return nil, fmt.Errorf("weaviateindex: unhandled field kind for %s", field)
	}
}

// unquote strips the single-quote wrapping compose.formatValue applies to
// strings and undoes its '' escaping; a bare literal (no quotes) is
// returned unchanged.
func unquote(lit string) string {
	if len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'' {
		lit = lit[1 : len(lit)-1]
	}
	return strings.ReplaceAll(lit, "''", "'")
}

// splitTopLevel splits s on every occurrence of sep that sits outside any
// parenthesis nesting and outside any single-quoted string literal.
func splitTopLevel(s, sep string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		}
		if !inQuote && depth == 0 && strings.HasPrefix(s[i:], sep) {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			i += len(sep) - 1
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// balanced reports whether the outer parens in s (s[0]=='(' and
// s[len-1]==')') actually wrap the entire expression, rather than just an
// opening/closing pair that happen to appear first and last while
// belonging to unrelated sub-expressions.
func balanced(s string) bool {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
