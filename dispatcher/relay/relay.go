// Package relay dispatches continuations as webhook events through
// github.com/xraph/relay, repointed from the teacher's relay_hook package
// (which emits Dispatch's own lifecycle events to Relay for delivery to
// externally-registered subscriber URLs) to instead emit the envelope
// itself as the event payload. A subscriber on the other end is expected
// to be an HTTP endpoint mounted with dispatcher/http.Mount — relay's
// job here is fan-out/retry delivery to registered webhook subscribers,
// not the processing loop itself, so this package implements only
// dispatcher.Dispatcher and, unlike dispatcher/http and dispatcher/ws,
// exposes no Mount.
package relay

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/xraph/relay"
	"github.com/xraph/relay/catalog"
	relayevent "github.com/xraph/relay/event"

	"github.com/conduitrun/conduit/dispatcher"
)

var _ dispatcher.Dispatcher = (*Dispatcher)(nil)

// EventType is the Relay event type used for every envelope emitted by
// this package.
const EventType = "conduit.envelope"

// Definition describes EventType for registration in Relay's catalog via
// relay.Relay.RegisterEventType, mirroring relayhook.AllDefinitions.
func Definition() catalog.WebhookDefinition {
	return catalog.WebhookDefinition{
		Name:        EventType,
		Description: "Carries one conduit execution envelope to a subscriber for processing.",
		Group:       "conduit",
		Version:     "2026-01-01",
	}
}

// RegisterEventType registers EventType in r's catalog. Call this once
// during startup before the first Dispatch.
func RegisterEventType(ctx context.Context, r *relay.Relay) error {
	_, err := r.RegisterEventType(ctx, Definition())
	return err
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTenantID sets the tenant every dispatched event is attributed to.
// Relay routes webhook delivery per tenant, so a multi-tenant conduit
// deployment should set this per Dispatcher instance (e.g. one per
// tenant, or derived at Dispatch time via WithMetadata's "tenant" key).
func WithTenantID(tenantID string) Option {
	return func(d *Dispatcher) { d.tenantID = tenantID }
}

// envelopePayload is the JSON shape carried as the Relay event's Data
// field. Payload bytes are base64-encoded so an arbitrary envelope
// (already JSON, but opaque to this package) survives round-tripping
// through Relay's own event-store serialization unchanged.
type envelopePayload struct {
	Payload string `json:"payload"`
}

// Dispatcher delivers envelopes as Relay webhook events.
type Dispatcher struct {
	relay    *relay.Relay
	tenantID string
}

// New returns a Dispatcher sending events through r.
func New(r *relay.Relay, opts ...Option) *Dispatcher {
	d := &Dispatcher{relay: r}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends payload as a Relay event of type EventType. Relay owns
// retry and delivery guarantees to registered subscriber webhooks past
// this point; DelayMS is not supported since Relay's webhook delivery is
// immediate on Send.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, opts ...dispatcher.DispatchOption) error {
	var o dispatcher.DispatchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.DelayMS > 0 {
		return &dispatcher.Error{Err: fmt.Errorf("relay: delayed dispatch is not supported")}
	}

	tenantID := d.tenantID
	if v, ok := o.Metadata["tenant"]; ok {
		tenantID = v
	}

	err := d.relay.Send(ctx, &relayevent.Event{
		Type:     EventType,
		TenantID: tenantID,
		Data:     envelopePayload{Payload: base64.StdEncoding.EncodeToString(payload)},
	})
	if err != nil {
		return &dispatcher.Error{Err: err}
	}
	return nil
}
