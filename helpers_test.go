package apimanager

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type productModel struct {
	MartID   int    `json:"martId"`
	MartName string `json:"martName"`
}

type productList struct {
	Data []productModel `json:"data"`
}

const productListBody = `{"data":[{"martId":1,"martName":"Apple"},{"martId":2,"martName":"Banana"}]}`

var productAPI = Endpoint{Name: "Product", URL: "/product", Kind: ContentEmpty}

// recorder is a Callback counting every invocation.
type recorder[T any] struct {
	mu        sync.Mutex
	outcomes  []Outcome
	successes []*Response[T]
	fails     []*Response[T]
	netErrs   []error
	messages  []string
	delivered chan Outcome
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{delivered: make(chan Outcome, 16)}
}

func (r *recorder[T]) record(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
	r.delivered <- o
}

func (r *recorder[T]) Successful(resp *Response[T]) {
	r.mu.Lock()
	r.successes = append(r.successes, resp)
	r.mu.Unlock()
	r.record(OutcomeSuccessful)
}

func (r *recorder[T]) Fail(resp *Response[T]) {
	r.mu.Lock()
	r.fails = append(r.fails, resp)
	r.mu.Unlock()
	r.record(OutcomeFail)
}

func (r *recorder[T]) NetworkError(err error) {
	r.mu.Lock()
	r.netErrs = append(r.netErrs, err)
	r.mu.Unlock()
	r.record(OutcomeNetworkError)
}

func (r *recorder[T]) OtherError(msg string) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	r.record(OutcomeOtherError)
}

func (r *recorder[T]) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// expectSingle fails unless exactly one outcome, want, was delivered.
func (r *recorder[T]) expectSingle(t *testing.T, want Outcome) {
	t.Helper()
	got := r.Outcomes()
	if len(got) != 1 {
		t.Fatalf("Expected exactly one delivery, got %v", got)
	}
	if got[0] != want {
		t.Fatalf("Expected outcome %s, got %s", want, got[0])
	}
}

func (r *recorder[T]) expectNone(t *testing.T) {
	t.Helper()
	if got := r.Outcomes(); len(got) != 0 {
		t.Fatalf("Expected no delivery, got %v", got)
	}
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// gate is a round tripper that blocks every request until released and
// records how many requests reached it.
type gate struct {
	mu      sync.Mutex
	count   int
	entered chan struct{}
	release chan struct{}
	status  int
	body    string
	onEnter func()
}

func newGate(status int, body string) *gate {
	return &gate{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		status:  status,
		body:    body,
	}
}

func (g *gate) RoundTrip(req *http.Request) (*http.Response, error) {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()

	if g.onEnter != nil {
		g.onEnter()
	}
	g.entered <- struct{}{}

	select {
	case <-g.release:
		return jsonResponse(req, g.status, g.body), nil
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
}

func (g *gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", what)
	}
}

func runCall[T any](ctx context.Context, c *Client, api API, cb Callback[T], opts ...CallOption) <-chan State {
	done := make(chan State, 1)
	go func() {
		done <- Call(ctx, c, api, nil, cb, opts...)
	}()
	return done
}

func waitState(t *testing.T, done <-chan State) State {
	t.Helper()
	select {
	case s := <-done:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for call to return")
		return StateCreated
	}
}
