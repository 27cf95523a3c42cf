package loadbalance

import "errors"

var errNoInstances = errors.New("loadbalance: no instances available")
