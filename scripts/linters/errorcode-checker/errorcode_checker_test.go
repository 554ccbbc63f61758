package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestErrorCodeChecker(t *testing.T) {
	root := writeTree(t, map[string]string{
		"store/errors.go": `package store

import "example.com/pkg/errors"

var (
	ErrUpsertFailed = errors.MustNewCode("store.upsert_failed")
	ErrUnused       = errors.MustNewCode("store.unused")
	ErrOnlyTests    = errors.MustNewCode("store.only_tests")
)
`,
		"store/store.go": `package store

import "example.com/pkg/errors"

func upsert() error {
	return errors.New(ErrUpsertFailed, "bulk upsert failed", nil)
}
`,
		"store/store_test.go": `package store

var _ = ErrOnlyTests
`,
		"loader/errors.go": `package loader

import "example.com/pkg/errors"

var ErrFileFailed = errors.MustNewCode("loader.file_failed")

var ErrDuplicate = errors.MustNewCode("store.upsert_failed")
`,
		"loader/loader.go": `package loader

import (
	"fmt"

	"example.com/pkg/errors"
	"example.com/store"
)

func load() error {
	if errors.HasCode(nil, store.ErrUpsertFailed) {
		return fmt.Errorf("raw")
	}
	_ = ErrDuplicate
	// fmt.Errorf in a comment is fine
	return errors.New(ErrFileFailed, "failed", nil)
}
`,
		"_examples/other/errors.go": `package other

import "example.com/pkg/errors"

var ErrIgnored = errors.MustNewCode("other.ignored")
`,
	})

	config, err := loadConfig("")
	require.NoError(t, err)

	checker := NewErrorCodeChecker(false)
	require.NoError(t, checker.CheckDirectory(root, config.ExcludePaths))

	t.Run("collects declarations outside excluded paths", func(t *testing.T) {
		assert.Len(t, checker.errorCodes, 5)
	})

	t.Run("reports unused codes", func(t *testing.T) {
		var names []string
		for _, info := range checker.Unused() {
			names = append(names, info.Name)
		}
		assert.Equal(t, []string{"ErrUnused", "ErrOnlyTests"}, names)
	})

	t.Run("reports duplicate code strings", func(t *testing.T) {
		dups := checker.Duplicates()
		require.Len(t, dups, 1)
		assert.Len(t, dups["store.upsert_failed"], 2)
	})

	t.Run("finds forbidden patterns in sources only", func(t *testing.T) {
		violations, err := checker.CheckForbiddenPatterns(config.ForbiddenPatterns)
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, filepath.Join(root, "loader", "loader.go"), violations[0].File)
		assert.Equal(t, 12, violations[0].Line)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errorcode.yml")
	require.NoError(t, os.WriteFile(path, []byte("exit_on_unused: false\nexclude_paths: [\"gen/\"]\n"), 0644))

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.False(t, config.ExitOnUnused)
	assert.True(t, config.ExitOnDuplicate)
	assert.Equal(t, []string{"gen/"}, config.ExcludePaths)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
