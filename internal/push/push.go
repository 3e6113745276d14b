// Package push implements push notification config storage and best-effort
// webhook delivery of task snapshots.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/pkg/a2a"
)

// ConfigStore is the per-task CRUD surface behind the
// tasks/pushNotificationConfig/* operations.
type ConfigStore interface {
	Set(ctx context.Context, taskID string, config a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error)
	Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error)
	List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error)
	Delete(ctx context.Context, taskID, configID string) error
}

// Sender delivers a task snapshot to every webhook registered for the task.
// Delivery is best-effort; failures are logged and never surfaced.
type Sender interface {
	Send(ctx context.Context, task *a2a.Task)
}

// MemoryConfigStore keeps push configs in process memory.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]a2a.PushNotificationConfig // taskID -> configID -> config
}

var _ ConfigStore = (*MemoryConfigStore)(nil)

// NewMemoryConfigStore creates an empty config store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]map[string]a2a.PushNotificationConfig)}
}

// Set registers or replaces a config. An empty config id gets a generated
// one; the stored value is returned.
func (s *MemoryConfigStore) Set(ctx context.Context, taskID string, config a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error) {
	if config.URL == "" {
		return a2a.PushNotificationConfig{}, a2a.InvalidParamsf("push notification url is required")
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.configs[taskID]
	if !ok {
		byID = make(map[string]a2a.PushNotificationConfig)
		s.configs[taskID] = byID
	}
	byID[config.ID] = config
	return config, nil
}

// Get returns one config. An empty config id returns the sole config when
// the task has exactly one.
func (s *MemoryConfigStore) Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.configs[taskID]
	if configID == "" {
		if len(byID) == 1 {
			for _, cfg := range byID {
				return cfg, nil
			}
		}
		return a2a.PushNotificationConfig{}, a2a.InvalidParamsf("push notification config id is required")
	}
	cfg, ok := byID[configID]
	if !ok {
		return a2a.PushNotificationConfig{}, a2a.Errorf(a2a.CodeInvalidParams,
			"push notification config %q not found for task %q", configID, taskID)
	}
	return cfg, nil
}

// List returns all configs registered for the task.
func (s *MemoryConfigStore) List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.configs[taskID]
	configs := make([]a2a.PushNotificationConfig, 0, len(byID))
	for _, cfg := range byID {
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Delete removes one config. Deleting an unknown id is not an error.
func (s *MemoryConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID, ok := s.configs[taskID]; ok {
		delete(byID, configID)
		if len(byID) == 0 {
			delete(s.configs, taskID)
		}
	}
	return nil
}

// HTTPSender posts task snapshots to registered webhooks.
type HTTPSender struct {
	store  ConfigStore
	client *http.Client
	log    *logger.Logger
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender creates a sender reading webhook registrations from the
// store. timeout bounds each delivery attempt.
func NewHTTPSender(store ConfigStore, timeout time.Duration, log *logger.Logger) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &HTTPSender{
		store:  store,
		client: &http.Client{Timeout: timeout},
		log:    log.WithComponent("push"),
	}
}

// Send posts the task snapshot to every config registered for its id.
func (s *HTTPSender) Send(ctx context.Context, task *a2a.Task) {
	if task == nil {
		return
	}
	configs, err := s.store.List(ctx, task.ID)
	if err != nil {
		s.log.WithError(err).WithTaskID(task.ID).Warn("failed to list push notification configs")
		return
	}
	if len(configs) == 0 {
		return
	}

	payload, err := json.Marshal(task)
	if err != nil {
		s.log.WithError(err).WithTaskID(task.ID).Warn("failed to marshal task for push notification")
		return
	}

	for _, cfg := range configs {
		if err := s.post(ctx, cfg, payload); err != nil {
			s.log.WithError(err).WithTaskID(task.ID).Warn("push notification delivery failed",
				zap.String("url", cfg.URL))
		}
	}
}

func (s *HTTPSender) post(ctx context.Context, cfg a2a.PushNotificationConfig, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("X-A2A-Notification-Token", cfg.Token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
