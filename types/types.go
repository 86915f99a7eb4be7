package types

import (
	"database/sql/driver"
	"errors"
	"strings"
)

// Kind semantic value type of an entity field
type Kind string

const (
	String Kind = "string"
	Int    Kind = "int"
	Float  Kind = "float"
	Bool   Kind = "bool"
	Time   Kind = "time"
	Date   Kind = "date"
	Bytes  Kind = "bytes"
	UUID   Kind = "uuid"
	// Generic passes values through untouched, used for vendor specific columns
	Generic Kind = "generic"
)

var (
	// ErrUnmappedType no database type registered for the semantic type
	ErrUnmappedType = errors.New("unmapped type")
	// ErrConversion value can't be converted
	ErrConversion = errors.New("invalid value")
)

// Type converts values of one semantic kind between their Go and database representations.
//
// FromDatabase must accept every representation a driver may hand back (booleans as integers,
// timestamps as strings, numbers as []byte...), and ValuesEqual must compare semantically so that
// dirty checking doesn't report differences that only exist on the wire.
type Type interface {
	Kind() Kind
	ToDatabase(value interface{}) (driver.Value, error)
	FromDatabase(value interface{}) (interface{}, error)
	ParseDefault(literal string) (interface{}, error)
	ValuesEqual(a, b interface{}) bool
}

// Expr a raw SQL expression used as a default or on-update value, e.g. CURRENT_TIMESTAMP
type Expr string

// Equal expressions compare case-insensitively, ignoring a trailing "()" and timestamp precision
func (e Expr) Equal(other Expr) bool {
	return normalizeExpr(string(e)) == normalizeExpr(string(other))
}

func normalizeExpr(s string) string {
	s = strings.ToLower(stripParens(s))
	s = strings.TrimSuffix(s, "()")
	if strings.HasPrefix(s, "current_timestamp(") && strings.HasSuffix(s, ")") {
		// precision, MySQL reports CURRENT_TIMESTAMP(3) for datetime(3) columns
		s = "current_timestamp"
	}
	switch s {
	case "now", "current_timestamp", "localtimestamp", "datetime('now')":
		return "current_timestamp"
	}
	return s
}

var expressions = []string{
	"current_timestamp", "current_date", "current_time", "now()", "localtimestamp",
	"datetime('now')", "current_timestamp()", "current_timestamp(6)",
}

// IsExpr report whether literal is a SQL expression rather than a constant
func IsExpr(literal string) bool {
	l := strings.ToLower(stripParens(literal))
	for _, e := range expressions {
		if l == e {
			return true
		}
	}
	// function call such as nextval('seq'::regclass) or gen_random_uuid()
	idx := strings.IndexByte(l, '(')
	if idx <= 0 || !strings.HasSuffix(l, ")") {
		return false
	}
	for _, c := range l[:idx] {
		if !(c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// stripParens removes balanced parentheses around the whole of s, SQLite reports (datetime('now'))
func stripParens(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		for i := 0; i < len(s)-1; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				// the first parenthesis closes before the end, as in (a) + (b)
				return s
			}
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// TrimLiteral strips a postgres style cast and surrounding quotes from a default literal
func TrimLiteral(literal string) string {
	s := strings.TrimSpace(literal)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if idx := strings.LastIndex(s, "::"); idx > 0 && !strings.Contains(s[idx:], "'") {
		s = s[:idx]
	}
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			quote := string(s[0])
			s = strings.ReplaceAll(s[1:len(s)-1], quote+quote, quote)
		}
	}
	return s
}
