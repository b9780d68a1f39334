package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/onestopradio/streamcast/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_StreamOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	stream := &models.DedicatedStream{
		ID:           "test-stream-1",
		UserID:       "user-1",
		Port:         8100,
		Title:        "Friday Night Mix",
		Bitrate:      128,
		MaxListeners: 100,
		Status:       models.StreamStatusActive,
	}

	// Test SetStream
	if err := cache.SetStream(ctx, stream, 5*time.Minute); err != nil {
		t.Fatalf("SetStream failed: %v", err)
	}

	// Test GetStream
	retrieved, err := cache.GetStream(ctx, stream.ID)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved stream should not be nil")
	}

	if retrieved.ID != stream.ID {
		t.Errorf("Expected ID %s, got %s", stream.ID, retrieved.ID)
	}

	if retrieved.Port != stream.Port {
		t.Errorf("Expected port %d, got %d", stream.Port, retrieved.Port)
	}

	if retrieved.Status != models.StreamStatusActive {
		t.Errorf("Expected status active, got %s", retrieved.Status)
	}

	// Test GetStream for non-existent stream
	nonExistent, err := cache.GetStream(ctx, "non-existent")
	if err != nil {
		t.Fatalf("GetStream for non-existent should not error: %v", err)
	}

	if nonExistent != nil {
		t.Error("Non-existent stream should return nil")
	}

	// Test DeleteStream
	if err := cache.DeleteStream(ctx, stream.ID); err != nil {
		t.Fatalf("DeleteStream failed: %v", err)
	}

	deleted, err := cache.GetStream(ctx, stream.ID)
	if err != nil {
		t.Fatalf("GetStream after delete failed: %v", err)
	}

	if deleted != nil {
		t.Error("Deleted stream should return nil")
	}
}

func TestCache_UserStreamIndex(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// Empty index returns empty string
	streamID, err := cache.GetUserStream(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserStream failed: %v", err)
	}
	if streamID != "" {
		t.Errorf("Expected empty stream id, got %s", streamID)
	}

	if err := cache.SetUserStream(ctx, "user-1", "stream-1", 5*time.Minute); err != nil {
		t.Fatalf("SetUserStream failed: %v", err)
	}

	streamID, err = cache.GetUserStream(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserStream failed: %v", err)
	}
	if streamID != "stream-1" {
		t.Errorf("Expected stream-1, got %s", streamID)
	}

	if err := cache.DeleteUserStream(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUserStream failed: %v", err)
	}

	streamID, err = cache.GetUserStream(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserStream after delete failed: %v", err)
	}
	if streamID != "" {
		t.Errorf("Expected empty stream id after delete, got %s", streamID)
	}
}

func TestCache_PoolStatus(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	// Cache miss
	missed, err := cache.GetPoolStatus(ctx)
	if err != nil {
		t.Fatalf("GetPoolStatus miss failed: %v", err)
	}
	if missed != nil {
		t.Error("Expected nil on cache miss")
	}

	status := &models.PoolStatus{
		TotalPorts:     101,
		AllocatedPorts: 40,
		AvailablePorts: 61,
		RangeStart:     8100,
		RangeEnd:       8200,
	}

	if err := cache.SetPoolStatus(ctx, status, 15*time.Second); err != nil {
		t.Fatalf("SetPoolStatus failed: %v", err)
	}

	retrieved, err := cache.GetPoolStatus(ctx)
	if err != nil {
		t.Fatalf("GetPoolStatus failed: %v", err)
	}

	if retrieved == nil {
		t.Fatal("Retrieved pool status should not be nil")
	}

	if retrieved.AllocatedPorts != 40 {
		t.Errorf("Expected 40 allocated ports, got %d", retrieved.AllocatedPorts)
	}
}

func TestCache_ServerStatus(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	type serverStatus struct {
		ActiveStreams int `json:"active_streams"`
	}

	var missed serverStatus
	hit, err := cache.GetServerStatus(ctx, "srv-1", &missed)
	if err != nil {
		t.Fatalf("GetServerStatus miss failed: %v", err)
	}
	if hit {
		t.Error("Expected cache miss")
	}

	if err := cache.SetServerStatus(ctx, "srv-1", serverStatus{ActiveStreams: 12}, 15*time.Second); err != nil {
		t.Fatalf("SetServerStatus failed: %v", err)
	}

	var retrieved serverStatus
	hit, err = cache.GetServerStatus(ctx, "srv-1", &retrieved)
	if err != nil {
		t.Fatalf("GetServerStatus failed: %v", err)
	}
	if !hit {
		t.Fatal("Expected cache hit")
	}
	if retrieved.ActiveStreams != 12 {
		t.Errorf("Expected 12 active streams, got %d", retrieved.ActiveStreams)
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	key := "user:123"
	limit := int64(5)
	window := 1 * time.Minute

	// Should allow first 5 requests
	for i := 0; i < 5; i++ {
		allowed, err := cache.CheckRateLimit(ctx, key, limit, window)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}

		if !allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// Should deny 6th request
	allowed, err := cache.CheckRateLimit(ctx, key, limit, window)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}

	if allowed {
		t.Error("Request beyond limit should be denied")
	}
}

func TestCache_Locking(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	resource := "monitor:leader"

	// Test AcquireLock
	acquired, err := cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if !acquired {
		t.Error("First lock acquisition should succeed")
	}

	// Test acquiring same lock again (should fail)
	acquired, err = cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("Second AcquireLock failed: %v", err)
	}

	if acquired {
		t.Error("Second lock acquisition should fail")
	}

	// Test ReleaseLock
	if err := cache.ReleaseLock(ctx, resource); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	// Should be able to acquire again
	acquired, err = cache.AcquireLock(ctx, resource, 1*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock after release failed: %v", err)
	}

	if !acquired {
		t.Error("Lock acquisition after release should succeed")
	}
}

func TestCache_StatOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	stat := "streams_provisioned"

	if err := cache.IncrementStat(ctx, stat); err != nil {
		t.Fatalf("IncrementStat failed: %v", err)
	}
	if err := cache.IncrementStat(ctx, stat); err != nil {
		t.Fatalf("IncrementStat failed: %v", err)
	}

	value, err := cache.GetStat(ctx, stat)
	if err != nil {
		t.Fatalf("GetStat failed: %v", err)
	}

	if value != 2 {
		t.Errorf("Expected stat value 2, got %d", value)
	}
}

func TestCache_SetGetWithJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	key := "test:json"

	type TestData struct {
		Name  string
		Count int
	}

	original := TestData{
		Name:  "test",
		Count: 42,
	}

	if err := cache.SetWithJSON(ctx, key, original, 5*time.Minute); err != nil {
		t.Fatalf("SetWithJSON failed: %v", err)
	}

	var retrieved TestData
	if err := cache.GetWithJSON(ctx, key, &retrieved); err != nil {
		t.Fatalf("GetWithJSON failed: %v", err)
	}

	if retrieved.Name != original.Name {
		t.Errorf("Expected Name %s, got %s", original.Name, retrieved.Name)
	}

	if retrieved.Count != original.Count {
		t.Errorf("Expected Count %d, got %d", original.Count, retrieved.Count)
	}
}
