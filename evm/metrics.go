package evm

import "github.com/ethereum/go-ethereum/metrics"

var (
	executeTimer    = metrics.NewRegisteredTimer("evm/execute", nil)
	nestedCallMeter = metrics.NewRegisteredMeter("evm/nested/calls", nil)
	depthLimitMeter = metrics.NewRegisteredMeter("evm/nested/depthlimit", nil)
	hostErrorMeter  = metrics.NewRegisteredMeter("evm/host/errors", nil)
)
