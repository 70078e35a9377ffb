package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/execctx"
	"github.com/conduitrun/conduit/mount"
)

// processRequest mirrors execctx.Envelope's shape so forge's request-schema
// binding can decode the POSTed body directly. It is re-marshaled into an
// execctx.Envelope before being handed to mount.Mount.Process, since forge's
// typed-handler signature (grounded on api/job_handler.go and friends across
// the retrieval pack) binds into a struct rather than exposing the raw
// request body.
type processRequest struct {
	Event   json.RawMessage           `json:"event"`
	Context *execctx.ExecutionContext `json:"context,omitempty"`
}

// processResponse is returned on success. The Mount HTTP contract only
// requires the adapter to signal acceptance and completion; conduit reports
// both in the one response since Process runs the entire round trip
// synchronously.
type processResponse struct {
	Status string `json:"status"`
}

// MountOption configures the handler registered by Mount.
type MountOption func(*mountConfig)

type mountConfig struct {
	path string
}

// WithPath overrides the default "/events" route path.
func WithPath(path string) MountOption {
	return func(c *mountConfig) { c.path = path }
}

// Mount registers m's processing endpoint on router and returns router's
// assembled http.Handler, following the teacher's api.API.Handler shape:
// build a forge.Router, register routes into a group, hand back
// router.Handler(). POST with a JSON envelope body is the request; a
// single 200 response reporting {"status":"done"} is returned once
// Process has driven the round trip to completion or suspension (spec.md
// allows a single-shot response in place of a separate accepted/done
// acknowledgment), and a malformed or schema-invalid envelope is reported
// as 400 via forge.BadRequest, matching the InvalidEventError kind which
// spec.md says must never be retried blindly by the transport.
func Mount(m *mount.Mount, opts ...MountOption) http.Handler {
	cfg := mountConfig{path: "/events"}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := forge.NewRouter()
	g := router.Group("/v1", forge.WithGroupTags("conduit"))

	handler := func(ctx forge.Context, req *processRequest) (*processResponse, error) {
		env := execctx.Envelope{Event: req.Event, Context: req.Context}
		raw, err := json.Marshal(env)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid envelope: %v", err))
		}

		if err := m.Process(ctx.Context(), raw); err != nil {
			var invalid *event.InvalidEventError
			if errors.As(err, &invalid) {
				return nil, forge.BadRequest(invalid.Error())
			}
			return nil, err
		}
		return &processResponse{Status: "done"}, nil
	}

	_ = g.POST(cfg.path, handler,
		forge.WithSummary("Process an event envelope"),
		forge.WithDescription("Accepts one execution envelope and drives it to completion or suspension."),
		forge.WithOperationID("processEvent"),
		forge.WithRequestSchema(processRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Processed", processResponse{}),
		forge.WithErrorResponses(),
	)

	return router.Handler()
}
