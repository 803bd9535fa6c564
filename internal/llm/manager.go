package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kyleking/schema-rag/internal/logging"
)

// Manager routes completions to a default provider with retries, then to
// fallback providers in order
type Manager struct {
	providers map[string]Service
	config    ManagerConfig
	logger    *logging.Logger
}

// ManagerConfig configures the LLM manager behavior
type ManagerConfig struct {
	DefaultProvider   string        `json:"default_provider"`
	FallbackProviders []string      `json:"fallback_providers"`
	RetryAttempts     int           `json:"retry_attempts"`
	RetryDelay        time.Duration `json:"retry_delay"`
	Timeout           time.Duration `json:"timeout"`
}

// NewManager creates a new LLM manager with the given configuration
func NewManager(config ManagerConfig, logger *logging.Logger) *Manager {
	return &Manager{
		providers: make(map[string]Service),
		config:    config,
		logger:    logging.OrDiscard(logger),
	}
}

// RegisterProvider registers a new LLM provider
func (m *Manager) RegisterProvider(name string, service Service) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	if service == nil {
		return errors.New("service cannot be nil")
	}

	m.providers[name] = service

	return nil
}

// Complete tries the default provider, then each fallback provider
func (m *Manager) Complete(ctx context.Context, prompt, model string) (string, error) {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	order := append([]string{m.config.DefaultProvider}, m.config.FallbackProviders...)

	var lastErr error

	for i, name := range order {
		provider, exists := m.providers[name]
		if !exists {
			continue
		}

		// the model name only applies to the default provider
		providerModel := model
		if i > 0 {
			providerModel = ""
		}

		text, err := m.tryProvider(ctx, provider, prompt, providerModel)
		if err == nil {
			return text, nil
		}

		lastErr = err
		m.logger.WithField("provider", name).WithError(err).Warn("LLM provider failed")

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return "", fmt.Errorf("no LLM provider registered for %q", m.config.DefaultProvider)
	}

	return "", lastErr
}

// tryProvider attempts a completion with retries
func (m *Manager) tryProvider(ctx context.Context, provider Service, prompt, model string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}

		text, err := provider.Complete(ctx, prompt, model)
		if err == nil {
			return text, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("provider failed after %d attempts: %w", m.config.RetryAttempts+1, lastErr)
}

// GetAvailableProviders returns the registered provider names
func (m *Manager) GetAvailableProviders() []string {
	var providers []string
	for name := range m.providers {
		providers = append(providers, name)
	}

	return providers
}

// IsProviderRegistered checks if a provider is registered
func (m *Manager) IsProviderRegistered(name string) bool {
	_, exists := m.providers[name]
	return exists
}

// DefaultManagerConfig returns the configuration used by the CLI for provider
func DefaultManagerConfig(provider string) ManagerConfig {
	return ManagerConfig{
		DefaultProvider: provider,
		RetryAttempts:   2,
		RetryDelay:      time.Second * 2,
	}
}
