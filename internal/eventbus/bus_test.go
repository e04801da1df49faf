package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewBuildEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		calledB = true
		return nil
	})

	if err := bus.Publish(context.Background(), BuildEventStatusChanged, BuildEvent{Type: BuildEventStatusChanged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledA || !calledB {
		t.Fatalf("expected handlers to be called")
	}
}

func TestBusDispatchByType(t *testing.T) {
	bus := NewBuildEventBus()
	statusCalled := false
	completedCalled := false

	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		statusCalled = true
		return nil
	})
	bus.Subscribe(BuildEventCompleted, func(ctx context.Context, event BuildEvent) error {
		completedCalled = true
		return nil
	})

	if err := bus.Publish(context.Background(), BuildEventCompleted, BuildEvent{Type: BuildEventCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statusCalled {
		t.Fatalf("expected StatusChanged handler to not be called")
	}
	if !completedCalled {
		t.Fatalf("expected Completed handler to be called")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBuildEventBus()
	called := false
	unsubscribe := bus.Subscribe(BuildEventAttempt, func(ctx context.Context, event BuildEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	if err := bus.Publish(context.Background(), BuildEventAttempt, BuildEvent{Type: BuildEventAttempt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewBuildEventBus()
	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		return errors.New("err-b")
	})

	if err := bus.Publish(context.Background(), BuildEventStatusChanged, BuildEvent{Type: BuildEventStatusChanged}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPublishStatusNilBus(t *testing.T) {
	if err := PublishStatus(context.Background(), nil, BuildEvent{Type: BuildEventStatusChanged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublishStatusStampsTime(t *testing.T) {
	bus := NewBuildEventBus()
	var received BuildEvent
	bus.Subscribe(BuildEventStatusChanged, func(ctx context.Context, event BuildEvent) error {
		received = event
		return nil
	})

	event := BuildEvent{Type: BuildEventStatusChanged, Name: "demo"}
	if err := PublishStatus(context.Background(), bus, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Time.IsZero() {
		t.Fatalf("expected event time to be stamped")
	}
	if received.Name != "demo" {
		t.Fatalf("unexpected event: %+v", received)
	}
}
