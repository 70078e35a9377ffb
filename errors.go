package conduit

import "errors"

var (
	// ErrNoStore is returned by Worker.Mount when no Store has been
	// configured.
	ErrNoStore = errors.New("conduit: no store configured")

	// ErrNoDispatcher is returned by Worker.Mount when no Dispatcher has
	// been configured and the execution mode requires one.
	ErrNoDispatcher = errors.New("conduit: no dispatcher configured")

	// ErrDuplicateFunctionID is returned by Worker.Mount when two
	// registered functions share an id.
	ErrDuplicateFunctionID = errors.New("conduit: duplicate function id")
)
