package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("INDEXER", "memory")
	t.Setenv("REPORT_DIR", "")

	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "income_tax_guide_2023.txt"), []byte("1 RATES\nYear of Assessment 2023 rates apply."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "income_tax_guide_2024.txt"), []byte("1 RATES\nYear of Assessment 2024 rates apply."), 0o644))
	return docs
}

func TestIngest_SecondRunUsesCache(t *testing.T) {
	docs := setupEnv(t)

	out, err := execute(t, "ingest", docs, "-q")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 processed")
	assert.Contains(t, out, "1 version conflicts")

	out, err = execute(t, "ingest", docs, "-q")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 processed")
	assert.Contains(t, out, "2 skipped")

	out, err = execute(t, "ingest", docs, "-q", "--no-cache")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 processed")
}

func TestIngest_MissingFileFails(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "ingest", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, out, "missing.txt: load:")
}

func TestVersionsCommands(t *testing.T) {
	docs := setupEnv(t)
	_, err := execute(t, "ingest", docs, "-q")
	require.NoError(t, err)

	out, err := execute(t, "versions", "conflicts")
	require.NoError(t, err)
	assert.Contains(t, out, "income_tax_guide: income_tax_guide_2023.txt, income_tax_guide_2024.txt")

	out, err = execute(t, "versions", "history", "income_tax_guide")
	require.NoError(t, err)
	assert.Contains(t, out, "Family: income_tax_guide")
	assert.Contains(t, out, "income_tax_guide_2024.txt")

	_, err = execute(t, "versions", "retire", "income_tax_guide_2023.txt")
	require.NoError(t, err)
	out, err = execute(t, "versions", "conflicts")
	require.NoError(t, err)
	assert.Contains(t, out, "No version conflicts")

	_, err = execute(t, "versions", "retire", "unknown.txt")
	assert.ErrorContains(t, err, "not registered")
}

func TestInspect(t *testing.T) {
	docs := setupEnv(t)
	out, err := execute(t, "inspect", filepath.Join(docs, "income_tax_guide_2024.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "File: income_tax_guide_2024.txt (1 pages)")
	assert.Contains(t, out, "Year(s): 2024")
	assert.Contains(t, out, "Chunks: 1")
}
