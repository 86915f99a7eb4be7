package logger

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const tmFmtWithMS = "2006-01-02 15:04:05.999"

// NumericPlaceholder matches postgres style $n placeholders
var NumericPlaceholder = regexp.MustCompile(`\$(\d+)`)

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ExplainSQL renders a statement with its arguments inlined, for logging only
func ExplainSQL(sql string, numericPlaceholder *regexp.Regexp, escaper string, vars ...interface{}) string {
	rendered := make([]string, len(vars))
	quote := func(s string) string {
		return escaper + strings.ReplaceAll(s, escaper, escaper+escaper) + escaper
	}

	for idx, v := range vars {
		if valuer, ok := v.(driver.Valuer); ok {
			v, _ = valuer.Value()
		}

		switch v := v.(type) {
		case nil:
			rendered[idx] = "NULL"
		case bool:
			rendered[idx] = strconv.FormatBool(v)
		case time.Time:
			if v.IsZero() {
				rendered[idx] = quote("0000-00-00 00:00:00")
			} else {
				rendered[idx] = quote(v.Format(tmFmtWithMS))
			}
		case []byte:
			if s := string(v); isPrintable(s) {
				rendered[idx] = quote(s)
			} else {
				rendered[idx] = quote("<binary>")
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			rendered[idx] = fmt.Sprintf("%d", v)
		case float32:
			rendered[idx] = strconv.FormatFloat(float64(v), 'f', -1, 32)
		case float64:
			rendered[idx] = strconv.FormatFloat(v, 'f', -1, 64)
		case string:
			rendered[idx] = quote(v)
		default:
			rendered[idx] = quote(fmt.Sprint(v))
		}
	}

	if numericPlaceholder == nil {
		var b strings.Builder
		idx := 0
		for _, c := range sql {
			if c == '?' && idx < len(rendered) {
				b.WriteString(rendered[idx])
				idx++
				continue
			}
			b.WriteRune(c)
		}
		return b.String()
	}

	return numericPlaceholder.ReplaceAllStringFunc(sql, func(m string) string {
		sub := numericPlaceholder.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil || n < 1 || n > len(rendered) {
			return m
		}
		return rendered[n-1]
	})
}
