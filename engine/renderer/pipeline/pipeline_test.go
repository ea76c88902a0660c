package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/renderer/material"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
)

func TestCacheExactLookup(t *testing.T) {
	c := NewCache()
	h := handle.Handle{Index: 1, Generation: 1}
	c.Register(Key{Pass: pass.GBuffer, Features: material.FeatureAlbedoTexture}, h)

	got, ok := c.Lookup(Key{Pass: pass.GBuffer, Features: material.FeatureAlbedoTexture})
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = c.Lookup(Key{Pass: pass.GBuffer, Features: material.FeatureNormalMap})
	assert.False(t, ok, "unregistered variant with no fallback misses")
}

func TestCacheFeaturelessFallback(t *testing.T) {
	c := NewCache()
	base := handle.Handle{Index: 2, Generation: 1}
	c.Register(Key{Pass: pass.GBuffer}, base)

	got, ok := c.Lookup(Key{Pass: pass.GBuffer, Features: material.FeatureNormalMap | material.FeatureEmissiveTexture})
	require.True(t, ok, "featureless variant serves as fallback")
	assert.Equal(t, base, got)
}

func TestDepthPassesCollapseFeatures(t *testing.T) {
	c := NewCache()
	shadow := handle.Handle{Index: 3, Generation: 1}
	c.Register(Key{Pass: pass.Shadow}, shadow)

	got, ok := c.Lookup(Key{Pass: pass.Shadow, Features: material.FeatureAlbedoTexture})
	require.True(t, ok)
	assert.Equal(t, shadow, got)

	// Registering a featured shadow variant lands on the same normalized key.
	c.Register(Key{Pass: pass.Shadow, Features: material.FeatureNormalMap}, shadow)
	assert.Equal(t, 1, c.Len())
}

func TestCacheClear(t *testing.T) {
	c := NewCache()
	c.Register(Key{Pass: pass.GBuffer}, handle.Handle{Index: 4, Generation: 1})
	c.Register(Key{Pass: pass.Transparent}, handle.Handle{Index: 5, Generation: 1})
	require.Equal(t, 2, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Lookup(Key{Pass: pass.GBuffer})
	assert.False(t, ok)
}

func TestKeyString(t *testing.T) {
	k := Key{Pass: pass.GBuffer, Features: material.FeatureAlbedoTexture | material.FeatureNormalMap}
	assert.Equal(t, "GBuffer/albedo_tex|normal_map", k.String())
}
