package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shellHTML = `<!doctype html>
<html>
<head>
  <title>Shell</title>
  <script nonce="">var empty = 1;</script>
  <script nonce="abc123" src="/shell.js"></script>
</head>
<body>
  <div id="app-navbar" class="slot top"></div>
  <div id="app-orders" class="slot"></div>
</body>
</html>`

func TestParseDocument(t *testing.T) {
	dom, err := ParseDocument(strings.NewReader(shellHTML))
	require.NoError(t, err)

	assert.Len(t, dom.Scripts(), 2)
	assert.Equal(t, "abc123", dom.Nonce())

	titles := dom.Query("title")
	require.Len(t, titles, 1)
	assert.Equal(t, "Shell", titles[0].Text)
}

func TestQuerySelectors(t *testing.T) {
	dom, err := ParseDocument(strings.NewReader(shellHTML))
	require.NoError(t, err)

	tests := []struct {
		selector string
		want     int
	}{
		{"#app-navbar", 1},
		{".slot", 2},
		{".top", 1},
		{"div", 2},
		{"script[src]", 1},
		{`script[src="/shell.js"]`, 1},
		{"[nonce]", 2},
		{"#missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Len(t, dom.Query(tt.selector), tt.want)
		})
	}
}

func TestAppendChildRecordsChange(t *testing.T) {
	dom := NewDOM()
	assert.Empty(t, dom.Nonce())

	script := NewElement("script", map[string]string{"src": "https://cdn.example/app.js"})
	dom.AppendChild(dom.Head(), script)

	require.Len(t, dom.Scripts(), 1)
	assert.Equal(t, dom.Head(), script.Parent)
	assert.Equal(t, []DOMChange{{Type: "append_child", Target: "head", Name: "script", Value: "https://cdn.example/app.js"}}, dom.Changes())
}
