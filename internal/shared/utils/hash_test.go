package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashJSONIgnoresMapOrder(t *testing.T) {
	h := DefaultHasher()

	a, err := h.HashJSON(map[string]interface{}{"disabled": []string{"@org/a"}, "apps": map[string]string{"x": "hide", "y": "placeholder"}})
	require.NoError(t, err)
	b, err := h.HashJSON(map[string]interface{}{"apps": map[string]string{"y": "placeholder", "x": "hide"}, "disabled": []string{"@org/a"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := h.HashJSON(map[string]interface{}{"disabled": []string{"@org/b"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestHashJSONRejectsUnencodable(t *testing.T) {
	_, err := DefaultHasher().HashJSON(make(chan int))
	assert.Error(t, err)
}
