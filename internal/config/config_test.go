package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, SplitList(" A, B,,C "))
	assert.Nil(t, SplitList(""))
}
