package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/voicewire/call-control-plane/models"
)

var (
	// ErrCapabilityExists is returned when registering a duplicate (provider, model) pair
	ErrCapabilityExists = errors.New("capability already registered")

	// ErrCapabilityNotFound is returned when a (provider, model) pair is not registered
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrInvalidCapability is returned when a capability is missing required fields
	ErrInvalidCapability = errors.New("invalid capability")
)

// Registry holds the known facts about each (provider, model) pair. It is
// read-mostly: health probes and manual overrides are the only writers.
// Iteration order is registration order, which keeps routing tie-breaks
// deterministic for a fixed registry snapshot.
type Registry struct {
	mu      sync.RWMutex
	ordered []*models.ModelCapability
	index   map[string]*models.ModelCapability // key: provider/model
}

// New creates an empty capability registry
func New() *Registry {
	return &Registry{
		index: make(map[string]*models.ModelCapability),
	}
}

// Register adds a capability. Registering the same (provider, model) pair twice
// is rejected; probes update health through MarkHealth instead.
func (r *Registry) Register(cap *models.ModelCapability) error {
	if cap == nil {
		return ErrInvalidCapability
	}
	if cap.ProviderID == "" || cap.ModelName == "" || !cap.ModelType.IsValid() {
		return ErrInvalidCapability
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cap.Key()
	if _, exists := r.index[key]; exists {
		return ErrCapabilityExists
	}

	stored := *cap
	r.index[key] = &stored
	r.ordered = append(r.ordered, &stored)
	return nil
}

// Lookup returns copies of every capability of the requested model type, in
// registration order. Callers may mutate the returned slice freely.
func (r *Registry) Lookup(modelType models.ModelType) []*models.ModelCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.ModelCapability
	for _, cap := range r.ordered {
		if cap.ModelType == modelType {
			c := *cap
			result = append(result, &c)
		}
	}
	return result
}

// Get returns a copy of one capability
func (r *Registry) Get(providerID, modelName string) (*models.ModelCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, exists := r.index[providerID+"/"+modelName]
	if !exists {
		return nil, ErrCapabilityNotFound
	}
	c := *cap
	return &c, nil
}

// MarkHealth flips the health flag of one capability and stamps the check
// time. Capabilities are never deleted, only marked unhealthy.
func (r *Registry) MarkHealth(providerID, modelName string, healthy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cap, exists := r.index[providerID+"/"+modelName]
	if !exists {
		return ErrCapabilityNotFound
	}

	cap.Healthy = healthy
	cap.HealthCheckedAt = time.Now()
	return nil
}

// MarkProviderHealth flips the health flag of every capability owned by one
// provider. Used when a provider-level probe fails.
func (r *Registry) MarkProviderHealth(providerID string, healthy bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	updated := 0
	for _, cap := range r.ordered {
		if cap.ProviderID == providerID {
			cap.Healthy = healthy
			cap.HealthCheckedAt = now
			updated++
		}
	}
	return updated
}

// Providers returns every distinct provider id, in first-registration order
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var providers []string
	for _, cap := range r.ordered {
		if !seen[cap.ProviderID] {
			seen[cap.ProviderID] = true
			providers = append(providers, cap.ProviderID)
		}
	}
	return providers
}

// Count returns the number of registered capabilities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ordered)
}

// CountByType returns the number of capabilities per model type, split into
// total and healthy. Used by the engine's health aggregation.
func (r *Registry) CountByType() map[models.ModelType]TypeCounts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.ModelType]TypeCounts)
	for _, cap := range r.ordered {
		c := counts[cap.ModelType]
		c.Total++
		if cap.Healthy {
			c.Healthy++
		}
		counts[cap.ModelType] = c
	}
	return counts
}

// TypeCounts holds capability counts for one model type
type TypeCounts struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}
