package types

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
)

func conversionError(kind Kind, value interface{}) error {
	return fmt.Errorf("%w: can't convert %T(%v) to %s", ErrConversion, value, value, kind)
}

func defaultValue(t Type, literal string) (interface{}, error) {
	if IsExpr(literal) {
		return Expr(strings.TrimSpace(literal)), nil
	}
	if strings.EqualFold(strings.TrimSpace(literal), "null") {
		return nil, nil
	}
	return t.FromDatabase(TrimLiteral(literal))
}

func equalValues(t Type, a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, aok := a.(Expr)
	eb, bok := b.(Expr)
	if aok || bok {
		return aok && bok && ea.Equal(eb)
	}
	va, err := t.FromDatabase(a)
	if err != nil {
		return false
	}
	vb, err := t.FromDatabase(b)
	if err != nil {
		return false
	}
	switch x := va.(type) {
	case time.Time:
		return x.Equal(vb.(time.Time))
	case []byte:
		return bytes.Equal(x, vb.([]byte))
	}
	return va == vb
}

type stringType struct{}

func (stringType) Kind() Kind { return String }

func (t stringType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(string), nil
}

func (stringType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, conversionError(String, value)
}

func (t stringType) ParseDefault(literal string) (interface{}, error) {
	if IsExpr(literal) {
		return Expr(strings.TrimSpace(literal)), nil
	}
	return TrimLiteral(literal), nil
}

func (t stringType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type intType struct{}

func (intType) Kind() Kind { return Int }

func (t intType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(int64), nil
}

func (intType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, conversionError(Int, value)
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, conversionError(Int, value)
		}
		return int64(v), nil
	case float32:
		if float32(int64(v)) == v {
			return int64(v), nil
		}
	case float64:
		if float64(int64(v)) == v {
			return int64(v), nil
		}
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return parseInt(string(v))
	case string:
		return parseInt(v)
	}
	return nil, conversionError(Int, value)
}

func parseInt(s string) (interface{}, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return i, nil
}

func (t intType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t intType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type floatType struct{}

func (floatType) Kind() Kind { return Float }

func (t floatType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(float64), nil
}

func (floatType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return parseFloat(string(v))
	case string:
		return parseFloat(v)
	}

	if i, err := (intType{}).FromDatabase(value); err == nil && i != nil {
		return float64(i.(int64)), nil
	}
	return nil, conversionError(Float, value)
}

func parseFloat(s string) (interface{}, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return f, nil
}

func (t floatType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t floatType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type boolType struct{}

func (boolType) Kind() Kind { return Bool }

func (t boolType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(bool), nil
}

// FromDatabase MySQL and SQLite hand booleans back as integers, Postgres text protocol as "t"/"f"
func (boolType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case []byte:
		return parseBool(string(v))
	case string:
		return parseBool(v)
	}

	if i, err := (intType{}).FromDatabase(value); err == nil && i != nil {
		return i.(int64) != 0, nil
	}
	return nil, conversionError(Bool, value)
}

func parseBool(s string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off", "":
		return false, nil
	}
	return nil, conversionError(Bool, s)
}

func (t boolType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t boolType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := now.New(time.Now().UTC()).Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return t, nil
}

type timeType struct{}

func (timeType) Kind() Kind { return Time }

func (t timeType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(time.Time), nil
}

func (timeType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return nil, conversionError(Time, value)
}

func (t timeType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t timeType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type dateType struct{ timeType }

func (dateType) Kind() Kind { return Date }

func (t dateType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(time.Time), nil
}

func (t dateType) FromDatabase(value interface{}) (interface{}, error) {
	v, err := t.timeType.FromDatabase(value)
	if err != nil || v == nil {
		return v, err
	}
	y, m, d := v.(time.Time).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func (t dateType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t dateType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type bytesType struct{}

func (bytesType) Kind() Kind { return Bytes }

func (t bytesType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (bytesType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	}
	return nil, conversionError(Bytes, value)
}

func (t bytesType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t bytesType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

type uuidType struct{}

func (uuidType) Kind() Kind { return UUID }

func (t uuidType) ToDatabase(value interface{}) (driver.Value, error) {
	v, err := t.FromDatabase(value)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(uuid.UUID).String(), nil
}

func (uuidType) FromDatabase(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return parseUUID(string(v))
	case string:
		return parseUUID(v)
	}
	return nil, conversionError(UUID, value)
}

func parseUUID(s string) (interface{}, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return u, nil
}

func (t uuidType) ParseDefault(literal string) (interface{}, error) { return defaultValue(t, literal) }

func (t uuidType) ValuesEqual(a, b interface{}) bool { return equalValues(t, a, b) }

// genericType handles vendor specific columns found during introspection
type genericType struct{}

func (genericType) Kind() Kind { return Generic }

func (genericType) ToDatabase(value interface{}) (driver.Value, error) {
	if valuer, ok := value.(driver.Valuer); ok {
		return valuer.Value()
	}
	return value, nil
}

func (genericType) FromDatabase(value interface{}) (interface{}, error) {
	if b, ok := value.([]byte); ok {
		return append([]byte(nil), b...), nil
	}
	return value, nil
}

func (genericType) ParseDefault(literal string) (interface{}, error) {
	if IsExpr(literal) {
		return Expr(strings.TrimSpace(literal)), nil
	}
	return TrimLiteral(literal), nil
}

func (genericType) ValuesEqual(a, b interface{}) bool {
	if ea, ok := a.(Expr); ok {
		eb, ok := b.(Expr)
		return ok && ea.Equal(eb)
	}
	if ba, ok := a.([]byte); ok {
		if bb, ok := b.([]byte); ok {
			return bytes.Equal(ba, bb)
		}
	}
	return reflect.DeepEqual(a, b)
}
