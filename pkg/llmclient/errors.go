package llmclient

import "errors"

// ErrTransport is returned (or wrapped) by a Client implementation when the
// underlying call to the model failed for a reason other than context
// cancellation/deadline — a connection reset, a non-2xx response, etc.
// AgentRunner retries errors satisfying errors.Is(err, ErrTransport).
var ErrTransport = errors.New("llmclient: transport error")
