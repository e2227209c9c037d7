package mcpgateway

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks failures that must stop the gateway before it
// serves anything.
var ErrConfiguration = errors.New("mcpgateway: configuration error")

var (
	// ErrNoServers is returned when neither a single server nor any named
	// server was configured.
	ErrNoServers = fmt.Errorf("%w: no tool servers configured", ErrConfiguration)
	// ErrNoSession is returned when endpoint synthesis runs without a live
	// session.
	ErrNoSession = fmt.Errorf("%w: session is not initialized", ErrConfiguration)
)
