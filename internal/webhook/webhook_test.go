package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onestopradio/streamcast/pkg/models"
	"github.com/stretchr/testify/assert"
)

type mockRepository struct {
	mu         sync.Mutex
	webhooks   []*models.Webhook
	deliveries []*models.WebhookDelivery
}

func (m *mockRepository) GetWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhooks, nil
}

func (m *mockRepository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, delivery)
	return nil
}

func (m *mockRepository) UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.deliveries {
		if d.ID == delivery.ID {
			m.deliveries[i] = delivery
			return nil
		}
	}
	return nil
}

func (m *mockRepository) GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries, nil
}

func (m *mockRepository) deliveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deliveries)
}

func TestNotifyStreamEvent(t *testing.T) {
	var mu sync.Mutex
	receivedPayload := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		receivedPayload = string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := &mockRepository{
		webhooks: []*models.Webhook{
			{
				ID:     "webhook-1",
				UserID: "user-1",
				URL:    server.URL,
				Events: models.WebhookEvents{
					StreamProvisioned: true,
				},
				IsActive: true,
			},
		},
	}

	service := NewService(repo)

	stream := &models.DedicatedStream{
		ID:             "stream-1",
		UserID:         "user-1",
		Port:           8100,
		Title:          "Friday Night Mix",
		SourcePassword: "supersecretsource",
		AdminPassword:  "supersecretadmin",
		Status:         models.StreamStatusActive,
	}

	err := service.NotifyStreamEvent(context.Background(), models.WebhookEventStreamProvisioned, stream)
	assert.NoError(t, err)

	// Wait a bit for async delivery
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, repo.deliveryCount())

	mu.Lock()
	payload := receivedPayload
	mu.Unlock()

	assert.Contains(t, payload, "stream.provisioned")
	assert.Contains(t, payload, "stream-1")
	assert.False(t, strings.Contains(payload, "supersecretsource"), "payload leaked source password")
	assert.False(t, strings.Contains(payload, "supersecretadmin"), "payload leaked admin password")
}

func TestNotifySkipsInactiveWebhooks(t *testing.T) {
	repo := &mockRepository{
		webhooks: []*models.Webhook{
			{ID: "webhook-1", URL: "http://localhost:1", IsActive: false},
		},
	}

	service := NewService(repo)

	err := service.Notify(context.Background(), models.WebhookEventStreamTerminated, map[string]string{"stream_id": "s"})
	assert.NoError(t, err)
	assert.Equal(t, 0, repo.deliveryCount())
}

func TestWebhookSignature(t *testing.T) {
	service := NewService(&mockRepository{})

	payload := []byte(`{"event":"test"}`)
	secret := "test-secret"

	signature := service.generateSignature(payload, secret)
	assert.NotEmpty(t, signature)
	assert.Contains(t, signature, "sha256=")

	// Same payload and secret always produce the same signature
	assert.Equal(t, signature, service.generateSignature(payload, secret))
	assert.NotEqual(t, signature, service.generateSignature(payload, "other-secret"))
}

func TestWebhookEventMarshaling(t *testing.T) {
	event := models.WebhookEvent{
		Event:     models.WebhookEventStreamActivated,
		Timestamp: time.Now(),
		Data: map[string]string{
			"stream_id": "test-stream",
		},
	}

	data, err := json.Marshal(event)
	assert.NoError(t, err)
	assert.NotEmpty(t, data)

	var unmarshaled models.WebhookEvent
	err = json.Unmarshal(data, &unmarshaled)
	assert.NoError(t, err)
	assert.Equal(t, event.Event, unmarshaled.Event)
}
