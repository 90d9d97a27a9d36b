package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRequiresConfigPath(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	assert.Equal(t, 2, run(""))
}
