package types

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TypeFor(t *testing.T) {
	r := NewRegistry()

	for _, kind := range []Kind{String, Int, Float, Bool, Time, Date, Bytes, UUID} {
		typ, err := r.TypeFor(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, typ.Kind())
	}

	_, err := r.TypeFor("money")
	assert.ErrorIs(t, err, ErrUnmappedType)
}

func TestRegistry_TypeForDatabase(t *testing.T) {
	r := NewRegistry()

	tests := map[string]Kind{
		"VARCHAR(255)":                "string",
		"character varying":           String,
		"text":                        String,
		"tinyint(1)":                  Bool,
		"tinyint(4)":                  Int,
		"bigint unsigned":             Int,
		"BIGSERIAL":                   Int,
		"double precision":            Float,
		"decimal(10,2)":               Float,
		"timestamp with time zone":    Time,
		"datetime(3)":                 Time,
		"date":                        Date,
		"bytea":                       Bytes,
		"uuid":                        UUID,
		"geometry":                    Generic,
		"tsvector":                    Generic,
		"timestamp(6) with time zone": Time,
	}

	for name, kind := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, kind, r.TypeForDatabase(name).Kind())
		})
	}
}

type moneyType struct{ intType }

func (moneyType) Kind() Kind { return "money" }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(moneyType{}, "MONEY")

	typ, err := r.TypeFor("money")
	require.NoError(t, err)
	assert.Equal(t, Kind("money"), typ.Kind())
	assert.Equal(t, Kind("money"), r.TypeForDatabase("money").Kind())
}

func TestFromDatabase(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	tests := []struct {
		kind  Kind
		input interface{}
		want  interface{}
	}{
		{String, []byte("hello"), "hello"},
		{Int, []byte("42"), int64(42)},
		{Int, int32(7), int64(7)},
		{Int, float64(3), int64(3)},
		{Float, []byte("1.5"), 1.5},
		{Float, int64(2), float64(2)},
		{Bool, int64(1), true},
		{Bool, int64(0), false},
		{Bool, "t", true},
		{Bool, []byte("0"), false},
		{UUID, id.String(), id},
		{UUID, id[:], id},
		{Bytes, "raw", []byte("raw")},
		{Int, nil, nil},
	}

	for _, tt := range tests {
		typ, err := r.TypeFor(tt.kind)
		require.NoError(t, err)

		got, err := typ.FromDatabase(tt.input)
		require.NoError(t, err, "%s %v", tt.kind, tt.input)
		assert.Equal(t, tt.want, got, "%s %v", tt.kind, tt.input)
	}

	typ, _ := r.TypeFor(Int)
	_, err := typ.FromDatabase("not a number")
	assert.ErrorIs(t, err, ErrConversion)

	_, err = typ.FromDatabase(uint64(math.MaxInt64) + 1)
	assert.ErrorIs(t, err, ErrConversion)
	if strconv.IntSize == 64 {
		big := ^uint(0) >> 1
		_, err = typ.FromDatabase(big + 1)
		assert.ErrorIs(t, err, ErrConversion, "uint above MaxInt64 doesn't wrap")

		got, err := typ.FromDatabase(big)
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), got)
	}
}

func TestTimeFromDatabase(t *testing.T) {
	typ, _ := NewRegistry().TypeFor(Time)
	want := time.Date(2024, 3, 9, 10, 11, 12, 0, time.UTC)

	for _, input := range []interface{}{
		"2024-03-09 10:11:12",
		"2024-03-09T10:11:12Z",
		"2024-03-09 10:11:12+00:00",
		[]byte("2024-03-09 10:11:12.000"),
		want,
	} {
		got, err := typ.FromDatabase(input)
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got.(time.Time)), "%v: %v", input, got)
	}

	date, _ := NewRegistry().TypeFor(Date)
	got, err := date.FromDatabase("2024-03-09 10:11:12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestValuesEqual(t *testing.T) {
	r := NewRegistry()
	boolType, _ := r.TypeFor(Bool)
	intType, _ := r.TypeFor(Int)
	timeType, _ := r.TypeFor(Time)

	assert.True(t, boolType.ValuesEqual(true, int64(1)))
	assert.True(t, boolType.ValuesEqual(false, []byte("0")))
	assert.False(t, boolType.ValuesEqual(true, false))
	assert.True(t, intType.ValuesEqual(int64(5), "5"))
	assert.True(t, intType.ValuesEqual(nil, nil))
	assert.False(t, intType.ValuesEqual(nil, int64(0)))
	assert.True(t, timeType.ValuesEqual(Expr("CURRENT_TIMESTAMP"), Expr("now()")))
	assert.True(t, timeType.ValuesEqual(Expr("CURRENT_TIMESTAMP(3)"), Expr("current_timestamp")))
	assert.True(t, timeType.ValuesEqual(Expr("(datetime('now'))"), Expr("CURRENT_TIMESTAMP")))
	assert.False(t, timeType.ValuesEqual(Expr("CURRENT_TIMESTAMP"), "2024-01-01"))
}

func TestParseDefault(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		kind    Kind
		literal string
		want    interface{}
	}{
		{String, "'hello'", "hello"},
		{String, "'it''s'", "it's"},
		{String, "'hello'::character varying", "hello"},
		{Int, "42", int64(42)},
		{Int, "('7'::integer)", int64(7)},
		{Bool, "false", false},
		{Bool, "1", true},
		{Time, "CURRENT_TIMESTAMP", Expr("CURRENT_TIMESTAMP")},
		{Time, "now()", Expr("now()")},
		{Time, "(datetime('now'))", Expr("(datetime('now'))")},
		{Int, "NULL", nil},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			typ, err := r.TypeFor(tt.kind)
			require.NoError(t, err)

			got, err := typ.ParseDefault(tt.literal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
