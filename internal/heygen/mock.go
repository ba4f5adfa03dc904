package heygen

import (
	"context"
	"net/http"
	"sync"
)

// MockCall records one operation invocation seen by a MockCaller.
type MockCall struct {
	Op      string
	Payload any
}

// MockCaller is a scripted upstream used by orchestrator and HTTP tests.
// Responses are queued per operation; unstubbed operations answer 200 with
// an empty body.
type MockCaller struct {
	mu        sync.Mutex
	responses map[string][]Result
	calls     []MockCall
}

func NewMockCaller() *MockCaller {
	return &MockCaller{responses: make(map[string][]Result)}
}

// Stub queues a response for an operation. Repeated stubs for the same
// operation are consumed in order; the last one is sticky.
func (m *MockCaller) Stub(op string, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[op] = append(m.responses[op], res)
}

func (m *MockCaller) Post(_ context.Context, op string, payload any) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Op: op, Payload: payload})

	queue := m.responses[op]
	if len(queue) == 0 {
		return Result{Status: http.StatusOK, Body: map[string]any{}}
	}
	res := queue[0]
	if len(queue) > 1 {
		m.responses[op] = queue[1:]
	}
	return res
}

// Calls returns every recorded invocation in order.
func (m *MockCaller) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallsFor filters recorded invocations by operation.
func (m *MockCaller) CallsFor(op string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
