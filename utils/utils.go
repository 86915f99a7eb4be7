package utils

import (
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

var moduleSourceDir string

func init() {
	_, file, _, _ := runtime.Caller(0)
	moduleSourceDir = sourceDir(file)
}

// sourceDir returns the module root for a file inside <root>/utils
func sourceDir(file string) string {
	dir := filepath.Dir(filepath.Dir(file))
	if base := filepath.Base(filepath.Dir(dir)); base == "gorm.io" {
		dir = filepath.Dir(dir)
	}
	return filepath.ToSlash(dir) + "/"
}

// CallerFrame returns the first frame outside this module, test files count as outside
func CallerFrame() runtime.Frame {
	pcs := [13]uintptr{}
	len := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:len])
	for i := 0; i < len; i++ {
		frame, _ := frames.Next()
		if (!strings.HasPrefix(frame.File, moduleSourceDir) ||
			strings.HasSuffix(frame.File, "_test.go")) && !strings.HasSuffix(frame.File, ".gen.go") {
			return frame
		}
	}
	return runtime.Frame{}
}

// FileWithLineNum return the file name and line number of the caller
func FileWithLineNum() string {
	frame := CallerFrame()
	if frame.PC == 0 {
		return ""
	}
	return frame.File + ":" + strconv.FormatInt(int64(frame.Line), 10)
}

// ToStringKey renders values into a stable string key
func ToStringKey(values ...interface{}) string {
	results := make([]string, len(values))

	for idx, value := range values {
		if valuer, ok := value.(driver.Valuer); ok {
			value, _ = valuer.Value()
		}

		switch v := value.(type) {
		case nil:
			results[idx] = "<nil>"
		case string:
			results[idx] = v
		case []byte:
			results[idx] = string(v)
		case int64:
			results[idx] = strconv.FormatInt(v, 10)
		case fmt.Stringer:
			results[idx] = v.String()
		default:
			results[idx] = fmt.Sprint(reflect.Indirect(reflect.ValueOf(v)).Interface())
		}
	}

	return strings.Join(results, "_")
}

// SortedUnique returns a sorted copy of elems without duplicates
func SortedUnique(elems []string) []string {
	if len(elems) == 0 {
		return nil
	}
	result := append([]string(nil), elems...)
	sort.Strings(result)
	n := 1
	for i := 1; i < len(result); i++ {
		if result[i] != result[n-1] {
			result[n] = result[i]
			n++
		}
	}
	return result[:n]
}

func Contains(elems []string, elem string) bool {
	for _, e := range elems {
		if elem == e {
			return true
		}
	}
	return false
}
