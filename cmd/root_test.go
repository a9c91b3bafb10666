package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fetch", "convert", "run", "runs", "serve"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestRunsSubcommands(t *testing.T) {
	subs := map[string]bool{}
	for _, c := range runsCmd.Commands() {
		subs[c.Name()] = true
	}
	require.True(t, subs["list"])
	require.True(t, subs["show"])
}
