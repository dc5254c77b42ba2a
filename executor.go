package apimanager

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Call executes api on c and delivers the outcome to cb. It blocks until the
// call has finished and returns the terminal state.
//
// A call for an identity that already has a call in flight cancels that call;
// the canceled call delivers nothing and its Call returns only once the
// identity's slot is empty again. Calls for different identities do not affect
// each other.
func Call[T any](ctx context.Context, c *Client, api API, payload any, cb Callback[T], opts ...CallOption) State {
	o := callOptions{startDelay: c.startDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if cb == nil {
		cb = CallbackFuncs[T]{}
	}

	ex := &executor[T]{
		client:  c,
		api:     api,
		payload: payload,
		cb:      cb,
		opts:    o,
		callID:  c.newCallID(),
		state:   StateCreated,
	}
	return ex.execute(ctx)
}

func (c *Client) newCallID() string {
	if c.callIDGen != nil {
		if id := c.callIDGen(); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// executor drives one call through its states.
type executor[T any] struct {
	client  *Client
	api     API
	payload any
	cb      Callback[T]
	opts    callOptions
	callID  string
	state   State
	log     *slog.Logger

	// gen is the transport generation the call ran under.
	gen uint64
}

// delivery is a classified outcome waiting for the right to be delivered.
type delivery struct {
	outcome      Outcome
	deliver      func()
	tokenInvalid bool
}

func (ex *executor[T]) transition(s State) {
	ex.log.Debug("call state", "from", ex.state.String(), "to", s.String())
	ex.state = s
}

func (ex *executor[T]) execute(ctx context.Context) State {
	c := ex.client
	start := time.Now()

	if ex.api == nil || ex.api.Identity() == "" {
		c.logger.Error("api call rejected", "call_id", ex.callID, "error", ErrInvalidAPI)
		ex.cb.OtherError(ErrInvalidAPI.Error())
		return StateDelivered
	}

	id := ex.api.Identity()
	ex.log = c.logger.With("api", string(id), "call_id", ex.callID)

	if ex.opts.debug {
		return ex.executeDebug(ctx, start)
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Nothing before Register may wait on the transport lock, or a pending
	// Configure would keep this call from superseding the one in flight.
	entry, canceledPrevious := c.registry.Register(id, ex.callID, cancel)
	ex.gen = c.transport.Generation()
	if canceledPrevious {
		ex.log.Warn("canceled previous call")
		c.metrics.RecordSupersession(id)
	}
	c.metrics.RecordCallStart(id)

	d, delivered := ex.run(taskCtx, entry)

	if delivered {
		ex.transition(StateDelivered)
		vacated := c.registry.Unregister(entry)
		if vacated || c.restorePolicy == RestoreOnDelivered {
			ex.restoreTransport()
		}
		c.metrics.RecordCallEnd(id, d.outcome.String(), time.Since(start))
		return ex.state
	}

	ex.transition(StateCanceled)
	ex.log.Warn("call canceled", "cause", context.Cause(taskCtx))

	if c.registry.Unregister(entry) {
		// Nobody took over the slot, so any override this call ran under is
		// not going to be restored by a successor.
		if c.restorePolicy == RestoreOnVacate {
			ex.restoreTransport()
		}
	} else if err := c.registry.WaitVacant(ctx, id); err != nil {
		ex.log.Warn("stopped waiting for successor", "error", err)
	}

	c.metrics.RecordCallEnd(id, "canceled", time.Since(start))
	return ex.state
}

// run performs the delay, the request and classification. It reports false
// when the call was canceled before it could deliver.
func (ex *executor[T]) run(ctx context.Context, entry *Entry) (delivery, bool) {
	c := ex.client

	ex.transition(StateDelaying)
	if !sleep(ctx, ex.opts.startDelay) {
		return delivery{}, false
	}

	ex.transition(StateDispatching)
	req, err := BuildRequest(ex.api, ex.payload, c.baseURL, c.headers.Snapshot())
	if err != nil {
		ex.log.Error("build request failed", "error", err)
		return ex.deliver(ctx, entry, ex.otherError(err))
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		ex.log.Error("build request failed", "error", err)
		return ex.deliver(ctx, entry, ex.otherError(err))
	}

	ex.log.Debug("request",
		"url", req.URL,
		"app_version", req.Header.Get(HeaderAppVersion),
		"content_type", req.ContentType)
	if req.Kind == ContentJSON {
		ex.log.Debug("request body", "body", string(req.Body))
	}

	var d delivery
	err = c.transport.Do(httpReq, func(resp *http.Response, snap Snapshot) error {
		ex.gen = snap.Generation
		ex.transition(StateAwaitingResponse)

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		d = ex.classify(resp, body)
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return delivery{}, false
		}
		if IsNetwork(err) {
			ex.log.Error("network error", "url", req.URL, "error", err)
			return ex.deliver(ctx, entry, ex.networkError(err))
		}
		ex.log.Error("request failed", "url", req.URL, "error", err)
		return ex.deliver(ctx, entry, ex.otherError(err))
	}

	return ex.deliver(ctx, entry, d)
}

// classify turns a response into a pending delivery. It runs while the
// transport read lock is held and must not call back into the client.
func (ex *executor[T]) classify(resp *http.Response, body []byte) delivery {
	raw := string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		ex.log.Debug("response success", "status", resp.StatusCode, "body", raw)
		var data T
		if err := json.Unmarshal(body, &data); err != nil {
			ex.log.Error("response decode failed", "status", resp.StatusCode, "error", err)
			return ex.otherError(err)
		}
		r := &Response[T]{Data: data, Raw: raw, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
		return delivery{outcome: OutcomeSuccessful, deliver: func() { ex.cb.Successful(r) }}
	}

	ex.log.Error("response fail", "status", resp.StatusCode)
	var r *Response[T]
	var data T
	if len(body) > 0 && json.Unmarshal(body, &data) == nil {
		r = &Response[T]{Data: data, Raw: raw, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	}
	return delivery{
		outcome:      OutcomeFail,
		deliver:      func() { ex.cb.Fail(r) },
		tokenInvalid: resp.StatusCode == http.StatusUnauthorized,
	}
}

func (ex *executor[T]) networkError(err error) delivery {
	return delivery{outcome: OutcomeNetworkError, deliver: func() { ex.cb.NetworkError(err) }}
}

func (ex *executor[T]) otherError(err error) delivery {
	msg := err.Error()
	return delivery{outcome: OutcomeOtherError, deliver: func() { ex.cb.OtherError(msg) }}
}

// deliver hands d to the callback if the call still owns its slot. Once the
// registry grants delivery, a newer call can no longer cancel this one.
func (ex *executor[T]) deliver(ctx context.Context, entry *Entry, d delivery) (delivery, bool) {
	if !ex.client.registry.claim(ctx, entry) {
		ex.log.Warn("discarding outcome of canceled call", "outcome", d.outcome.String())
		return delivery{}, false
	}

	if d.tokenInvalid {
		ex.log.Warn("token invalid")
		ex.client.notifyTokenInvalid(ex.api.Identity())
	}
	d.deliver()
	return d, true
}

// restoreTransport undoes a timeout override the call ran under, unless the
// configuration was changed again after the call started.
func (ex *executor[T]) restoreTransport() {
	if ex.client.transport.RestoreIf(ex.gen) {
		ex.log.Info("transport restored to defaults")
	}
}

// executeDebug delivers the injected result after the start delay. It never
// touches the registry or the network.
func (ex *executor[T]) executeDebug(ctx context.Context, start time.Time) State {
	c := ex.client
	id := ex.api.Identity()
	c.metrics.RecordCallStart(id)

	ex.transition(StateDelaying)
	if !sleep(ctx, ex.opts.startDelay) {
		ex.transition(StateCanceled)
		c.metrics.RecordCallEnd(id, "canceled", time.Since(start))
		return ex.state
	}

	result := ex.opts.debugResult
	ex.log.Debug("debug result", "result", result.String())

	var d delivery
	switch result.Outcome() {
	case OutcomeSuccessful:
		var data T
		if err := json.Unmarshal([]byte(result.Body()), &data); err != nil {
			d = ex.otherError(err)
			break
		}
		r := &Response[T]{Data: data, Raw: result.Body(), StatusCode: http.StatusOK}
		d = delivery{outcome: OutcomeSuccessful, deliver: func() { ex.cb.Successful(r) }}
	case OutcomeFail:
		var r *Response[T]
		var data T
		if json.Unmarshal([]byte(result.Body()), &data) == nil {
			r = &Response[T]{Data: data, Raw: result.Body()}
		}
		d = delivery{outcome: OutcomeFail, deliver: func() { ex.cb.Fail(r) }}
	case OutcomeNetworkError:
		d = ex.networkError(errDebugNetwork)
	default:
		d = ex.otherError(errors.New(result.message))
	}

	d.deliver()
	ex.transition(StateDelivered)
	c.metrics.RecordCallEnd(id, d.outcome.String(), time.Since(start))
	return ex.state
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
