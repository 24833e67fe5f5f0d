package agentspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLLoader_LoadFile_YAML(t *testing.T) {
	content := `
name: helloworld
description: A minimal example agent
impl: helloworld
handlers:
  idle:
    is_initializer: true
    params:
      - name: question
        type: string
`
	path := writeTemp(t, "agent.yaml", content)
	loader := NewYAMLLoader()

	def, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "helloworld", def.Name)
	assert.Equal(t, "helloworld", def.Impl)
	require.Contains(t, def.Handlers, "idle")
	assert.True(t, def.Handlers["idle"].IsInitializer)
	require.Len(t, def.Handlers["idle"].Params, 1)
	assert.Equal(t, "question", def.Handlers["idle"].Params[0].Name)
}

func TestYAMLLoader_LoadFile_JSON(t *testing.T) {
	content := `{
  "name": "paramtester",
  "impl": "paramtester",
  "handlers": {
    "foo": {
      "is_initializer": true,
      "params": [
        {"name": "x", "type": "integer"},
        {"name": "y", "type": "integer", "default": 5}
      ]
    }
  }
}`
	path := writeTemp(t, "agent.json", content)
	loader := NewYAMLLoader()

	def, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "paramtester", def.Name)
	require.Len(t, def.Handlers["foo"].Params, 2)
	assert.EqualValues(t, 5, def.Handlers["foo"].Params[1].Default)
}

func TestYAMLLoader_LoadFile_NotFound(t *testing.T) {
	loader := NewYAMLLoader()
	_, err := loader.LoadFile(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read agent definition file")
}

func TestYAMLLoader_LoadFile_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "agent.toml", "name = 'test'")
	loader := NewYAMLLoader()

	_, err := loader.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestYAMLLoader_LoadFile_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "bad.yaml", "{{invalid yaml")
	loader := NewYAMLLoader()

	_, err := loader.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse YAML")
}

func TestYAMLLoader_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: b\nimpl: b\nhandlers:\n  init:\n    is_initializer: true\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("name: a\nimpl: a\nhandlers:\n  init:\n    is_initializer: true\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("not an agent"), 0644))

	loader := NewYAMLLoader()
	defs, err := loader.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"agent.yaml", "yaml"},
		{"agent.YAML", "yaml"},
		{"agent.yml", "yaml"},
		{"agent.json", "json"},
		{"agent.JSON", "json"},
		{"agent.toml", ""},
		{"agent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, detectFormat(tt.path))
		})
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
