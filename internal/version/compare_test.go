package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1", "1.0.0.0", 0},
		{"", "0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0pre1", "1.0", -1},
		{"1.0pre1", "1.0pre2", -1},
		{"1.0pre2", "1.0pre10", -1},
		{"1.0b1", "1.0", -1},
		{"1.0a1", "1.0b1", -1},
		{"1.0+", "1.1pre", 0},
		{"1.0+", "1.1pre0", 0},
		{"1.1pre", "1.1", -1},
		{"2.0b1", "2.0", -1},
		{"1.*", "1.99999", 1},
		{"*", "1000", 1},
		{"1.0.0a", "1.0.0", -1},
		{"1.0a1z", "1.0a1", -1},
		{"3.1.1", "3.1.0.9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.expected, Compare(tt.b, tt.a), "comparison must be antisymmetric")
		})
	}
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), ApplicationName+"/"))
	assert.Contains(t, Short(), ApplicationName)
	assert.NotEmpty(t, GetInfo().GoVersion)
}
