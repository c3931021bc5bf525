package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/config"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/replay"
)

func TestApplyOverrides_OnlyChangedFlags(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })

	require.NoError(t, generateCmd.Flags().Set("workers", "4"))
	require.NoError(t, generateCmd.Flags().Set("templates", "2_remove,3_count"))
	t.Cleanup(func() {
		generateCmd.Flags().Set("workers", "0")
		generateCmd.Flags().Set("templates", "")
		for _, name := range []string{"workers", "templates"} {
			generateCmd.Flags().Lookup(name).Changed = false
		}
	})

	require.NoError(t, applyOverrides(generateCmd))
	assert.Equal(t, 4, cfg.Generation.Workers)
	assert.Equal(t, []string{"2_remove", "3_count"}, cfg.Generation.Templates)
	assert.Equal(t, config.Default().Generation.Prefix, cfg.Generation.Prefix)
}

func TestApplyOverrides_RevalidatesConfig(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })

	require.NoError(t, generateCmd.Flags().Set("prefix", "BAD_PREFIX"))
	t.Cleanup(func() {
		generateCmd.Flags().Set("prefix", "")
		generateCmd.Flags().Lookup("prefix").Changed = false
	})

	assert.Error(t, applyOverrides(generateCmd))
}

func TestPrintComparison(t *testing.T) {
	results := []replay.ReplayResult{
		{QuestionIndex: 0, Action: replay.ActionMatch},
		{QuestionIndex: 1, Action: replay.ActionEvalFail},
	}
	var buf bytes.Buffer

	diverge := printComparison(&buf, results, []string{"match", "mismatch"})

	assert.Equal(t, 1, diverge)
	assert.Contains(t, buf.String(), "DIFF")
	assert.Contains(t, buf.String(), "Summary: 2 total, 1 match, 1 diverge")
}

func TestRunFixtureMode_RegressionFixture(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join("..", "..", "internal", "replay", "testdata", "remove_count.json")

	require.NoError(t, runFixtureMode(&buf, path))
	assert.Equal(t, 0, strings.Count(buf.String(), "DIFF"))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
}
