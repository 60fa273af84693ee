package engine

import (
	"fmt"
	"sync"

	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/providers/gemini"
)

// ProviderFactory creates a Responder from the engine configuration.
type ProviderFactory func(cfg Config) (modeladapter.Responder, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["gemini"] = newGemini
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newGemini(cfg Config) (modeladapter.Responder, error) {
	return gemini.New(cfg.BaseURL, cfg.APIKey), nil
}

// buildResponder creates a Responder using the registered factory for
// cfg.Provider. If retry options are configured, the responder is wrapped
// with a RetryingResponder.
func buildResponder(cfg Config) (modeladapter.Responder, error) {
	factory, ok := getFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider %q", cfg.Provider)
	}

	r, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: %w", cfg.Provider, err)
	}

	if !cfg.Retry.Enabled() {
		return r, nil
	}

	delay, err := cfg.Retry.Delay()
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: invalid base_delay %q: %w", cfg.Provider, cfg.Retry.BaseDelay, err)
	}

	return modeladapter.NewRetryingResponder(r, modeladapter.RetryOpts{
		RPM:        cfg.Retry.RPM,
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  delay,
	}), nil
}
