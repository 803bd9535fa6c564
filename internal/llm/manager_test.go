package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService implements the Service interface for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Complete(ctx context.Context, prompt, model string) (string, error) {
	args := m.Called(ctx, prompt, model)
	return args.String(0), args.Error(1)
}

func testManager(fallbacks ...string) *Manager {
	return NewManager(ManagerConfig{
		DefaultProvider:   "primary",
		FallbackProviders: fallbacks,
		RetryAttempts:     1,
		RetryDelay:        time.Millisecond,
	}, nil)
}

func TestManager_RegisterProvider(t *testing.T) {
	manager := testManager()

	tests := []struct {
		name         string
		providerName string
		service      Service
		wantErr      bool
	}{
		{"valid provider", "test-provider", &MockService{}, false},
		{"empty name", "", &MockService{}, true},
		{"nil service", "test-provider", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.RegisterProvider(tt.providerName, tt.service)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, manager.IsProviderRegistered(tt.providerName))
		})
	}

	assert.Equal(t, []string{"test-provider"}, manager.GetAvailableProviders())
}

func TestManager_CompleteDefaultProvider(t *testing.T) {
	primary := &MockService{}
	primary.On("Complete", mock.Anything, "prompt", "model-x").Return("SELECT 1;", nil).Once()

	manager := testManager()
	require.NoError(t, manager.RegisterProvider("primary", primary))

	text, err := manager.Complete(context.Background(), "prompt", "model-x")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", text)
	primary.AssertExpectations(t)
}

func TestManager_CompleteRetriesThenSucceeds(t *testing.T) {
	primary := &MockService{}
	primary.On("Complete", mock.Anything, "prompt", "").Return("", errors.New("overloaded")).Once()
	primary.On("Complete", mock.Anything, "prompt", "").Return("SELECT 2;", nil).Once()

	manager := testManager()
	require.NoError(t, manager.RegisterProvider("primary", primary))

	text, err := manager.Complete(context.Background(), "prompt", "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2;", text)
	primary.AssertNumberOfCalls(t, "Complete", 2)
}

func TestManager_CompleteFallsBack(t *testing.T) {
	primary := &MockService{}
	primary.On("Complete", mock.Anything, "prompt", "big-model").Return("", errors.New("down"))

	secondary := &MockService{}
	// fallbacks use their own configured model
	secondary.On("Complete", mock.Anything, "prompt", "").Return("SELECT 3;", nil).Once()

	manager := testManager("missing", "secondary")
	require.NoError(t, manager.RegisterProvider("primary", primary))
	require.NoError(t, manager.RegisterProvider("secondary", secondary))

	text, err := manager.Complete(context.Background(), "prompt", "big-model")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3;", text)
	primary.AssertNumberOfCalls(t, "Complete", 2)
	secondary.AssertExpectations(t)
}

func TestManager_CompleteAllFail(t *testing.T) {
	primary := &MockService{}
	primary.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("down"))

	manager := testManager()
	require.NoError(t, manager.RegisterProvider("primary", primary))

	_, err := manager.Complete(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "down")
}

func TestManager_CompleteNoProviders(t *testing.T) {
	_, err := testManager().Complete(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider registered")
}

func TestManager_CompleteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &MockService{}
	primary.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	secondary := &MockService{}

	manager := testManager("secondary")
	require.NoError(t, manager.RegisterProvider("primary", primary))
	require.NoError(t, manager.RegisterProvider("secondary", secondary))

	_, err := manager.Complete(ctx, "prompt", "")
	require.Error(t, err)
	primary.AssertNumberOfCalls(t, "Complete", 1)
	secondary.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}
