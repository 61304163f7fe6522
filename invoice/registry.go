package invoice

import (
	"fmt"
	"sync"
)

// RendererRegistry stores renderers by target.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[Target]Renderer
}

// NewRendererRegistry creates a registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{renderers: make(map[Target]Renderer)}
}

// Register adds a renderer for a target.
func (r *RendererRegistry) Register(target Target, renderer Renderer) error {
	if target == "" {
		return NewError(KindValidation, "renderer target is required", nil)
	}
	if renderer == nil {
		return NewError(KindValidation, "renderer is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[target]; exists {
		return NewError(KindValidation, fmt.Sprintf("renderer for %q already registered", target), nil)
	}
	r.renderers[target] = renderer
	return nil
}

// Resolve returns the renderer for the target.
func (r *RendererRegistry) Resolve(target Target) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[target]
	return renderer, ok
}
