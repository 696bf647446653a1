package directory

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Filter is the directory's boolean search tree. Exactly one field
// should be set per node; empty branches are omitted on the wire.
type Filter struct {
	Any      []*Filter `json:"any,omitempty"`
	All      []*Filter `json:"all,omitempty"`
	Not      *Filter   `json:"not,omitempty"`
	Eq       *Eq       `json:"eq,omitempty"`
	MemberOf string    `json:"memberOf,omitempty"`
}

// Eq constrains one attribute to an exact value.
type Eq struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// AnyOf matches when at least one branch matches.
func AnyOf(filters ...*Filter) *Filter {
	return &Filter{Any: filters}
}

// AllOf matches when every branch matches.
func AllOf(filters ...*Filter) *Filter {
	return &Filter{All: filters}
}

// NotOf inverts a filter.
func NotOf(f *Filter) *Filter {
	return &Filter{Not: f}
}

// EqField matches users whose attribute equals value.
func EqField(field, value string) *Filter {
	return &Filter{Eq: &Eq{Field: field, Value: value}}
}

// MemberOfGroup matches users belonging to the named group.
func MemberOfGroup(name string) *Filter {
	return &Filter{MemberOf: name}
}

// searchFields are the attributes a bare search word matches against.
var searchFields = []string{"id", "email", "displayName"}

// canonicalFields maps accepted field prefixes to wire attribute names.
var canonicalFields = map[string]string{
	"id":          "id",
	"email":       "email",
	"displayname": "displayName",
	"firstname":   "firstName",
	"lastname":    "lastName",
}

// ParseQuery turns a console search expression into a filter. Bare words
// match any of id, email and displayName; field:value tokens constrain a
// single attribute; memberof:NAME restricts to members of the named
// group. Values with spaces can be quoted. Multiple tokens must all
// match. An empty expression returns a nil filter, meaning no filtering.
func ParseQuery(query string) (*Filter, error) {
	tokens, err := shlex.Split(query)
	if err != nil {
		return nil, &Error{
			Kind:    KindValidation,
			Op:      "parse_query",
			Message: fmt.Sprintf("bad search expression %q", query),
			Err:     err,
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	parts := make([]*Filter, 0, len(tokens))
	for _, tok := range tokens {
		f, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return AllOf(parts...), nil
}

func parseToken(tok string) (*Filter, error) {
	field, value, ok := strings.Cut(tok, ":")
	if !ok {
		return anyFieldEquals(tok), nil
	}

	key := strings.ToLower(field)
	if key == "memberof" {
		return MemberOfGroup(value), nil
	}
	attr, known := canonicalFields[key]
	if !known {
		return nil, &Error{
			Kind:    KindValidation,
			Op:      "parse_query",
			Message: fmt.Sprintf("unknown search field %q", field),
		}
	}
	return EqField(attr, value), nil
}

func anyFieldEquals(value string) *Filter {
	eqs := make([]*Filter, 0, len(searchFields))
	for _, f := range searchFields {
		eqs = append(eqs, EqField(f, value))
	}
	return AnyOf(eqs...)
}
