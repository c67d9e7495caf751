package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStrings(t *testing.T) {
	a := HashStrings("rofex", "DLR/ENE26A")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashStrings("rofex", "DLR/ENE26A"))
	assert.NotEqual(t, a, HashStrings("rofex", "DLR/FEB26A"))
	assert.NotEqual(t, HashStrings("a\nb"), HashStrings("a", "b"))
	assert.NotEqual(t, HashStrings("ab", ""), HashStrings("a", "b"))
}
