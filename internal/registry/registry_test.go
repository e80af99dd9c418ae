package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pointyflow/internal/value"
)

func echo(_ context.Context, in value.Value) (value.Value, error) { return in, nil }

func TestRegister_DuplicatePanics(t *testing.T) {
	r := New()
	r.RegisterFunc("downloader", IOBound, echo)
	assert.Panics(t, func() { r.RegisterFunc("downloader", IOBound, echo) })
}

func TestLookup(t *testing.T) {
	r := New()
	r.RegisterFunc("downloader", IOBound, echo)
	h, ok := r.Lookup("downloader")
	require.True(t, ok)
	assert.Equal(t, IOBound, h.Kind)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestValidateAgainstManifest_OK(t *testing.T) {
	r := New()
	r.RegisterFunc("downloader", IOBound, echo)
	r.RegisterFunc("parser", CPUBound, echo)

	err := r.ValidateAgainstManifest([]Declared{
		{Name: "downloader", Kind: IOBound},
		{Name: "parser", Kind: CPUBound},
		{Name: "notifier", Kind: Remote},
	})
	assert.NoError(t, err)
}

func TestValidateAgainstManifest_MissingHandler(t *testing.T) {
	r := New()
	err := r.ValidateAgainstManifest([]Declared{{Name: "downloader", Kind: IOBound}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "downloader")
}

func TestValidateAgainstManifest_KindMismatch(t *testing.T) {
	r := New()
	r.RegisterFunc("downloader", CPUBound, echo)
	err := r.ValidateAgainstManifest([]Declared{{Name: "downloader", Kind: IOBound}})
	assert.Error(t, err)
}

func TestValidateAgainstManifest_OrphanedHandler(t *testing.T) {
	r := New()
	r.RegisterFunc("downloader", IOBound, echo)
	err := r.ValidateAgainstManifest(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not declared")
}
