package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFileWithLineNum(t *testing.T) {
	file := FileWithLineNum()
	if !strings.Contains(file, "utils_test.go") {
		t.Fatalf("expected caller in utils_test.go, got %q", file)
	}
}

func TestToStringKey(t *testing.T) {
	id := uuid.MustParse("b3b5f1b6-4f5e-4c59-9f0e-9c1d3b1f2a10")

	assert.Equal(t, "company_1", ToStringKey("company", int64(1)))
	assert.Equal(t, "pen_<nil>", ToStringKey("pen", nil))
	assert.Equal(t, "b3b5f1b6-4f5e-4c59-9f0e-9c1d3b1f2a10", ToStringKey(id))
	assert.Equal(t, "7", ToStringKey(7))
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedUnique([]string{"c", "a", "b", "a", "c"}))
	assert.Nil(t, SortedUnique(nil))
}
