package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunNoInputFileExitsOne(t *testing.T) {
	assert.Equal(t, 1, run(nil))
}

func TestRunVersionExitsZero(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--version"}))
}

func TestRunHelpExitsZero(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--help"}))
}

func TestRunUnknownFlagExitsOne(t *testing.T) {
	assert.Equal(t, 1, run([]string{"--nonsense-flag", "a.lc"}))
}

func TestRunTooManyInputFilesExitsOne(t *testing.T) {
	assert.Equal(t, 1, run([]string{"a.lc", "b.lc"}))
}

func TestRunMissingFileExitsOne(t *testing.T) {
	assert.Equal(t, 1, run([]string{"does-not-exist.lc"}))
}
