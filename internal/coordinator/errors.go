package coordinator

import "errors"

// ErrAlreadyStarted is returned by ReportHost.Startup when called more than once.
var ErrAlreadyStarted = errors.New("coordinator: report host already started")

// ErrHostShutDown is returned by ReportHost operations issued after Shutdown
// has completed.
var ErrHostShutDown = errors.New("coordinator: report host is shut down")

// ErrShutDown is returned by Coordinator.Shutdown when it is called again
// after the first call. The other Coordinator methods do not check for it.
var ErrShutDown = errors.New("coordinator: coordinator is shut down")
