package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestValidateAppName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"scoped", "@org/catalog", false},
		{"plain", "navbar", false},
		{"dotted", "@org/catalog.v2", false},
		{"empty", "", true},
		{"uppercase", "@Org/Catalog", true},
		{"space", "@org/cat alog", true},
		{"missing name", "@org/", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateModuleURL(t *testing.T) {
	assert.NoError(t, ValidateModuleURL("http://localhost:9001/catalog.js"))
	assert.NoError(t, ValidateModuleURL("https://cdn.example.com/a/b.js"))
	assert.Error(t, ValidateModuleURL("/relative.js"))
	assert.Error(t, ValidateModuleURL("ftp://host/x.js"))
	assert.Error(t, ValidateModuleURL("http://"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short  ", 10))

	long := strings.Repeat("é", 300)
	got := Truncate(long, MaxErrorMessageRunes)
	assert.Equal(t, MaxErrorMessageRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "http://h/a.js?t=1", WithQuery("http://h/a.js", "t", "1"))
	assert.Equal(t, "http://h/a.js?t=2&v=1", WithQuery("http://h/a.js?v=1", "t", "2"))
}
