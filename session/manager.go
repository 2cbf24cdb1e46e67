package session

import (
	"sync"
	"time"
)

// InboundCall is a SIP dialog that is currently ringing the controller.
type InboundCall struct {
	ID        string
	CallerID  string
	StartTime time.Time
}

var (
	inboundCalls map[string]*InboundCall
	callsMutex   sync.RWMutex
)

func init() {
	inboundCalls = make(map[string]*InboundCall)
}

func RegisterCall(call *InboundCall) {
	callsMutex.Lock()
	defer callsMutex.Unlock()
	inboundCalls[call.ID] = call
}

func UnregisterCall(callID string) {
	callsMutex.Lock()
	defer callsMutex.Unlock()
	delete(inboundCalls, callID)
}

func GetActiveCallCount() int {
	callsMutex.RLock()
	defer callsMutex.RUnlock()
	return len(inboundCalls)
}

func GetCall(callID string) (*InboundCall, bool) {
	callsMutex.RLock()
	defer callsMutex.RUnlock()
	call, ok := inboundCalls[callID]
	return call, ok
}
