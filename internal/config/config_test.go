package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_WritesDefaults(t *testing.T) {
	// Setup
	dir := t.TempDir()

	// Act
	cfg, err := Initialize(dir, SourceConfig{Kind: "mysql", DSN: "user:pw@tcp(db:3306)/wp"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, UREDir), cfg.UREPath())
	assert.Equal(t, filepath.Join(dir, UREDir, DatabaseFile), cfg.DatabasePath())

	loaded, err := LoadFrom(cfg.UREPath())
	require.NoError(t, err)
	assert.Equal(t, "mysql", loaded.Source.Kind)
	assert.Equal(t, "user:pw@tcp(db:3306)/wp", loaded.DSN())
	assert.Equal(t, 100, loaded.Search.ContentBatchSize)
	assert.Equal(t, 5000, loaded.Search.DatabaseBatchSize)
	assert.Equal(t, 20, loaded.Search.MaxPreviewResults)
	assert.Equal(t, 50, loaded.Search.SnippetContext)
	assert.Equal(t, 5, loaded.History.Limit)
	assert.Equal(t, []string{"_elementor_data"}, loaded.Source.StructuredKeys)
	assert.True(t, loaded.Search.SkipGUID)
}

func TestInitialize_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, SourceConfig{Kind: "sqlite"})
	require.NoError(t, err)

	_, err = Initialize(dir, SourceConfig{Kind: "sqlite"})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitialize_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Initialize(dir, SourceConfig{Kind: "oracle"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Initialize(dir, SourceConfig{Kind: "weaviate"})
	assert.ErrorIs(t, err, ErrInvalid, "weaviate needs a URL")

	_, statErr := os.Stat(filepath.Join(dir, UREDir))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	urePath := filepath.Join(dir, UREDir)
	require.NoError(t, os.MkdirAll(urePath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(urePath, ConfigFile), []byte(`
[source]
kind = "postgres"

[search]
max_preview_results = 7
exclude_fields = ["meta:_edit_*"]

[history]
limit = 0
`), 0o644))

	cfg, err := LoadFrom(urePath)

	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Source.Kind)
	assert.Equal(t, 7, cfg.Search.MaxPreviewResults)
	assert.Equal(t, []string{"meta:_edit_*"}, cfg.Search.ExcludeFields)
	assert.Equal(t, 0, cfg.History.Limit)
	assert.Equal(t, 100, cfg.Search.ContentBatchSize)
	assert.Equal(t, []string{"post", "page"}, cfg.Search.RecordTypes)
}

func TestLoadFrom_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	urePath := filepath.Join(dir, UREDir)
	require.NoError(t, os.MkdirAll(urePath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(urePath, ConfigFile), []byte(`
[search]
content_batch_size = 0
`), 0o644))

	_, err := LoadFrom(urePath)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFrom_Secrets(t *testing.T) {
	// Setup: the .env file sits next to .ure
	dir := t.TempDir()
	cfg, err := Initialize(dir, SourceConfig{Kind: "weaviate", WeaviateURL: "http://localhost:8080"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte(
		"URE_WEAVIATE_API_KEY=from-file\nURE_SOURCE_DSN=file-dsn\nURE_LOG_LEVEL=DEBUG\n"), 0o600))
	t.Setenv(EnvSourceDSN, "env-dsn")

	// Act
	loaded, err := LoadFrom(cfg.UREPath())

	// Assert: process environment wins over the file
	require.NoError(t, err)
	assert.Equal(t, "from-file", loaded.WeaviateAPIKey())
	assert.Equal(t, "env-dsn", loaded.DSN())
	assert.Equal(t, "debug", loaded.Level())
	assert.Equal(t, "warn", loaded.LogLevel)

	// secrets never reach the config file
	require.NoError(t, loaded.Save())
	data, err := os.ReadFile(filepath.Join(cfg.UREPath(), ConfigFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-dsn")
	assert.NotContains(t, string(data), "from-file")
	assert.NotContains(t, string(data), "debug")
}

func TestFindRoot_WalksUp(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, SourceConfig{Kind: "sqlite"})
	require.NoError(t, err)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	root, err := FindRoot()

	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(filepath.Join(dir, UREDir))
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindRoot_HomeFallback(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	_, err := FindRoot()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, os.MkdirAll(filepath.Join(home, UREDir), 0o755))
	root, err := FindRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, UREDir), root)
}
