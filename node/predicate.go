// Copyright 2026 The Loom Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"fmt"
	"strings"

	"github.com/loom-sync/loom/lib/entity"
)

// Fetch predicates are equality clauses joined by "and":
//
//	room = kh1vZodSRBm0rV4sGBSU9w and deleted = false
//	name = "General"
//
// Values are double-quoted strings, the bare booleans true/false, or
// bare tokens (entity IDs in their base64 text form). An empty
// predicate matches every entity. This is deliberately small — it
// covers the queries the chat model needs without growing a query
// planner.

type predicateFunc func(*entity.Entity) bool

type clause struct {
	field string
	value any
}

// compilePredicate parses a predicate into a match function. Returns
// an error for anything that does not fit the grammar, so a typo
// fails the fetch instead of silently matching nothing.
func compilePredicate(predicate string) (predicateFunc, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return func(*entity.Entity) bool { return true }, nil
	}

	parts := strings.Split(predicate, " and ")
	clauses := make([]clause, 0, len(parts))
	for _, part := range parts {
		c, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}

	return func(e *entity.Entity) bool {
		for _, c := range clauses {
			if !c.matches(e) {
				return false
			}
		}
		return true
	}, nil
}

func parseClause(text string) (clause, error) {
	field, value, found := strings.Cut(text, "=")
	if !found {
		return clause{}, fmt.Errorf("node: predicate clause %q: want field = value", strings.TrimSpace(text))
	}
	field = strings.TrimSpace(field)
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return clause{}, fmt.Errorf("node: predicate clause %q: want field = value", strings.TrimSpace(text))
	}

	switch {
	case strings.HasPrefix(value, `"`):
		if len(value) < 2 || !strings.HasSuffix(value, `"`) {
			return clause{}, fmt.Errorf("node: predicate clause %q: unterminated string", strings.TrimSpace(text))
		}
		return clause{field: field, value: value[1 : len(value)-1]}, nil
	case value == "true":
		return clause{field: field, value: true}, nil
	case value == "false":
		return clause{field: field, value: false}, nil
	default:
		// Bare token: an entity ID or other unquoted text value.
		return clause{field: field, value: value}, nil
	}
}

func (c clause) matches(e *entity.Entity) bool {
	got, present := e.Value(c.field)
	switch want := c.value.(type) {
	case bool:
		// An absent boolean field matches false: entities are not
		// required to carry deleted=false explicitly.
		if !present {
			return want == false
		}
		b, ok := got.(bool)
		return ok && b == want
	case string:
		if !present {
			return false
		}
		s, ok := got.(string)
		return ok && s == want
	default:
		return false
	}
}
