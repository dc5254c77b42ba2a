package apimanager

// Callback receives the outcome of a call. Exactly one method is invoked per call
// that was not superseded; a superseded call invokes none.
type Callback[T any] interface {
	// Successful is invoked for a 2xx response whose body decoded into T.
	Successful(resp *Response[T])
	// Fail is invoked for a non-2xx response. resp is nil when the body could
	// not be decoded.
	Fail(resp *Response[T])
	// NetworkError is invoked when no response was received.
	NetworkError(err error)
	// OtherError is invoked for serialization failures and anything unexpected.
	OtherError(msg string)
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are ignored.
type CallbackFuncs[T any] struct {
	OnSuccessful   func(resp *Response[T])
	OnFail         func(resp *Response[T])
	OnNetworkError func(err error)
	OnOtherError   func(msg string)
}

func (f CallbackFuncs[T]) Successful(resp *Response[T]) {
	if f.OnSuccessful != nil {
		f.OnSuccessful(resp)
	}
}

func (f CallbackFuncs[T]) Fail(resp *Response[T]) {
	if f.OnFail != nil {
		f.OnFail(resp)
	}
}

func (f CallbackFuncs[T]) NetworkError(err error) {
	if f.OnNetworkError != nil {
		f.OnNetworkError(err)
	}
}

func (f CallbackFuncs[T]) OtherError(msg string) {
	if f.OnOtherError != nil {
		f.OnOtherError(msg)
	}
}

// Outcome identifies which Callback method was invoked.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccessful
	OutcomeFail
	OutcomeNetworkError
	OutcomeOtherError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccessful:
		return "successful"
	case OutcomeFail:
		return "fail"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeOtherError:
		return "other_error"
	default:
		return "none"
	}
}
