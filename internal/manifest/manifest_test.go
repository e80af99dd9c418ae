package manifest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/registry"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.Default())
}

func writeHCL(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad_DecodesTaskBlocks(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "downloader.hcl", `
task "downloader" {
  kind        = "io"
  description = "fetches a URL"

  input "url" {
    type = string
  }

  output "body" {
    type = string
  }
}
`)

	set, err := Load(testContext(), dir)
	require.NoError(t, err)
	require.Contains(t, set.Tasks, "downloader")

	task := set.Tasks["downloader"]
	assert.Equal(t, registry.IOBound, task.Kind)
	assert.Equal(t, "fetches a URL", task.Description)
	require.Len(t, task.Inputs, 1)
	assert.Equal(t, "url", task.Inputs[0].Name)
	assert.True(t, task.Inputs[0].Type.Equals(cty.String))
	require.Len(t, task.Outputs, 1)
	assert.Equal(t, "body", task.Outputs[0].Name)
}

func TestLoad_RemoteKind(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "notifier.hcl", `
task "notifier" {
  kind = "remote"
}
`)

	set, err := Load(testContext(), dir)
	require.NoError(t, err)
	assert.Equal(t, registry.Remote, set.Tasks["notifier"].Kind)

	r := registry.New()
	set.RegisterRemotes(r)
	h, ok := r.Lookup("notifier")
	require.True(t, ok)
	assert.Equal(t, registry.Remote, h.Kind)
}

func TestLoad_UnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "bad.hcl", `
task "bad" {
  kind = "gpu"
}
`)
	_, err := Load(testContext(), dir)
	assert.Error(t, err)
}

func TestLoad_DuplicateTask(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "a.hcl", `task "x" { kind = "io" }`)
	writeHCL(t, dir, "b.hcl", `task "x" { kind = "cpu" }`)
	_, err := Load(testContext(), dir)
	assert.Error(t, err)
}

func TestLoad_CollectionTypes(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "t.hcl", `
task "batch" {
  kind = "cpu"
  input "urls" {
    type = list(string)
  }
}
`)
	set, err := Load(testContext(), dir)
	require.NoError(t, err)
	port := set.Tasks["batch"].Inputs[0]
	assert.True(t, port.Type.Equals(cty.List(cty.String)))
}

func TestDeclared(t *testing.T) {
	set := &Set{Tasks: map[string]*Task{
		"a": {Name: "a", Kind: registry.IOBound},
		"b": {Name: "b", Kind: registry.Remote},
	}}
	declared := set.Declared()
	assert.Len(t, declared, 2)
}
