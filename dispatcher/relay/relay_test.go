package relay_test

import (
	"context"
	"testing"

	"github.com/xraph/relay"
	relayevent "github.com/xraph/relay/event"
	relaymem "github.com/xraph/relay/store/memory"

	"github.com/conduitrun/conduit/dispatcher"
	conduitrelay "github.com/conduitrun/conduit/dispatcher/relay"
)

func newTestRelay(t *testing.T) *relay.Relay {
	t.Helper()
	r, err := relay.New(relay.WithStore(relaymem.New()))
	if err != nil {
		t.Fatalf("relay.New: %v", err)
	}
	if err := conduitrelay.RegisterEventType(context.Background(), r); err != nil {
		t.Fatalf("RegisterEventType: %v", err)
	}
	return r
}

func TestDispatcher_SendsEnvelopeAsRelayEvent(t *testing.T) {
	t.Parallel()

	r := newTestRelay(t)
	d := conduitrelay.New(r, conduitrelay.WithTenantID("acme"))

	payload := []byte(`{"event":{"type":"foo"}}`)
	if err := d.Dispatch(context.Background(), payload); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	events, err := r.Store().ListEvents(context.Background(), relayevent.ListOpts{
		Type:  conduitrelay.EventType,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].TenantID != "acme" {
		t.Fatalf("TenantID = %q, want acme", events[0].TenantID)
	}
}

func TestDispatcher_MetadataTenantOverridesDefault(t *testing.T) {
	t.Parallel()

	r := newTestRelay(t)
	d := conduitrelay.New(r, conduitrelay.WithTenantID("acme"))

	if err := d.Dispatch(context.Background(), []byte("x"), dispatcher.WithMetadata("tenant", "org-42")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	events, err := r.Store().ListEvents(context.Background(), relayevent.ListOpts{
		Type:  conduitrelay.EventType,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].TenantID != "org-42" {
		t.Fatalf("events = %+v, want tenant org-42", events)
	}
}

func TestDispatcher_RejectsDelay(t *testing.T) {
	t.Parallel()

	r := newTestRelay(t)
	d := conduitrelay.New(r)
	if err := d.Dispatch(context.Background(), []byte("x"), dispatcher.WithDelay(50)); err == nil {
		t.Fatal("expected delayed dispatch to be rejected")
	}
}

func TestDefinition_HasEventType(t *testing.T) {
	t.Parallel()
	if got := conduitrelay.Definition().Name; got != conduitrelay.EventType {
		t.Fatalf("Definition().Name = %q, want %q", got, conduitrelay.EventType)
	}
}
