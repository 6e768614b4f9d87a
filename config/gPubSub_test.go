package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

func TestPubSubClientInitGivesUp(t *testing.T) {
	t.Setenv("PUBSUB_PROJECT_ID", "recon-test")
	t.Setenv("PUBSUB_CREDENTIALS_JSON", "")
	origNew, origBackoff := newPubSubClient, clientInitBackoff
	calls := 0
	dialErr := errors.New("credentials: could not find default credentials")
	newPubSubClient = func(ctx context.Context, projectID string, opts ...option.ClientOption) (*pubsub.Client, error) {
		calls++
		return nil, dialErr
	}
	clientInitBackoff = time.Millisecond
	t.Cleanup(func() { newPubSubClient, clientInitBackoff = origNew, origBackoff })

	_, err := GetClient(context.Background())
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected the last init error, got %v", err)
	}
	if calls != maxClientInitAttempts {
		t.Fatalf("attempts=%d want %d", calls, maxClientInitAttempts)
	}
}

func TestPubSubClientInitStopsOnCancel(t *testing.T) {
	t.Setenv("PUBSUB_PROJECT_ID", "recon-test")
	origNew, origBackoff := newPubSubClient, clientInitBackoff
	newPubSubClient = func(ctx context.Context, projectID string, opts ...option.ClientOption) (*pubsub.Client, error) {
		return nil, errors.New("unavailable")
	}
	clientInitBackoff = time.Hour
	t.Cleanup(func() { newPubSubClient, clientInitBackoff = origNew, origBackoff })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := GetClient(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
