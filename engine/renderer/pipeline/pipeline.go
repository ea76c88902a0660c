package pipeline

import (
	"fmt"
	"sync"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/renderer/material"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
)

// Key identifies one pipeline variant: the pass it records into and the
// material feature set it was compiled for. Depth-only passes ignore most
// features, so keys are normalized through Normalize before lookup.
type Key struct {
	// Pass is the render pass kind this variant records into.
	Pass pass.Kind

	// Features is the material feature bitmask the variant was compiled for.
	Features material.Feature
}

// String returns a stable identifier for the key, used in log lines.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Pass, k.Features)
}

// Normalize strips feature bits irrelevant to the key's pass. Depth-only
// passes (shadow, depth prepass) sample no material textures, so all variants
// collapse to the featureless one.
//
// Returns:
//   - Key: the normalized key
func (k Key) Normalize() Key {
	switch k.Pass {
	case pass.Shadow, pass.DepthPrepass:
		k.Features = 0
	case pass.Ambient, pass.Lighting, pass.PostProcess, pass.UI:
		// Full-screen passes are featureless.
		k.Features = 0
	}
	return k
}

// Cache maps pipeline variant keys to the backend pipeline handles compiled
// for them. The backend registers variants at startup; batch building looks
// them up per draw group. Thread-safe.
type Cache interface {
	// Register associates a key with a compiled pipeline handle. Re-registering
	// a key replaces the previous handle.
	//
	// Parameters:
	//   - key: the variant key
	//   - pipeline: the backend pipeline handle
	Register(key Key, pipeline handle.Handle)

	// Lookup returns the pipeline handle for a key. The key is normalized
	// first; if no exact variant exists, the featureless variant for the
	// same pass is returned as a fallback.
	//
	// Parameters:
	//   - key: the variant key
	//
	// Returns:
	//   - handle.Handle: the pipeline handle
	//   - bool: false if neither the variant nor its fallback is registered
	Lookup(key Key) (handle.Handle, bool)

	// Len returns the number of registered variants.
	//
	// Returns:
	//   - int: the variant count
	Len() int

	// Clear drops all registered variants. Used when the backend rebuilds
	// pipelines after a swapchain format change.
	Clear()
}

type cacheImpl struct {
	mu       sync.RWMutex
	variants map[Key]handle.Handle
}

var _ Cache = &cacheImpl{}

// NewCache creates an empty pipeline variant cache.
//
// Returns:
//   - Cache: the new cache
func NewCache() Cache {
	return &cacheImpl{variants: make(map[Key]handle.Handle)}
}

func (c *cacheImpl) Register(key Key, pipeline handle.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[key.Normalize()] = pipeline
}

func (c *cacheImpl) Lookup(key Key) (handle.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key = key.Normalize()
	if h, ok := c.variants[key]; ok {
		return h, true
	}
	if key.Features != 0 {
		if h, ok := c.variants[Key{Pass: key.Pass}]; ok {
			return h, true
		}
	}
	return handle.Nil, false
}

func (c *cacheImpl) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.variants)
}

func (c *cacheImpl) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants = make(map[Key]handle.Handle)
}
