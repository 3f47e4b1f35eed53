package cacheclient

import (
	"errors"
	"fmt"
	"strconv"
)

// Reasons attached to failed responses.
const (
	ReasonNotFound   = "resource not found"
	ReasonNotStored  = "resource not stored"
	ReasonConnection = "connection error"
)

var (
	ErrNotFound   = errors.New("cacheclient: " + ReasonNotFound)
	ErrNotStored  = errors.New("cacheclient: " + ReasonNotStored)
	ErrConnection = errors.New("cacheclient: " + ReasonConnection)
	ErrInvalid    = errors.New("cacheclient: invalid request")
)

// Response is the uniform result of every provider operation.
// The zero value is a failed instruction on a healthy connection.
type Response struct {
	result      any
	instruction bool
	connection  bool
	reason      string
	kind        error // sentinel backing Err; nil on success
}

// NewResponse builds a response from raw parts. Failed instructions carry
// false as their result regardless of what was passed in.
func NewResponse(result any, instructionSuccess, connectionSuccess bool, reason string) Response {
	r := Response{
		result:      result,
		instruction: instructionSuccess,
		connection:  connectionSuccess,
		reason:      reason,
	}
	switch {
	case !connectionSuccess:
		r.kind = ErrConnection
	case !instructionSuccess:
		r.kind = ErrInvalid
		if reason == ReasonNotFound {
			r.kind = ErrNotFound
		} else if reason == ReasonNotStored {
			r.kind = ErrNotStored
		}
	}
	if !instructionSuccess {
		r.result = false
	}
	return r
}

// Success reports a completed instruction carrying result.
func Success(result any) Response {
	return Response{result: result, instruction: true, connection: true}
}

// NotFound reports a reachable backend that does not hold the key.
func NotFound() Response {
	return Response{result: false, connection: true, reason: ReasonNotFound, kind: ErrNotFound}
}

// NotStored reports a reachable backend that refused the write.
func NotStored() Response {
	return Response{result: false, connection: true, reason: ReasonNotStored, kind: ErrNotStored}
}

// Invalid reports a request rejected before touching the backend,
// or an instruction the backend refused for a reason other than a miss.
func Invalid(msg string) Response {
	return Response{result: false, connection: true, reason: msg, kind: ErrInvalid}
}

// ConnectionFailure reports an unreachable or misbehaving backend.
func ConnectionFailure(err error) Response {
	reason := ReasonConnection
	if err != nil {
		reason = ReasonConnection + ": " + err.Error()
	}
	return Response{result: false, reason: reason, kind: ErrConnection}
}

func (r Response) Result() any              { return r.result }
func (r Response) InstructionSuccess() bool { return r.instruction }
func (r Response) ConnectionSuccess() bool  { return r.connection }
func (r Response) ErrorMessage() string     { return r.reason }

// IsSuccessful is true only when both the instruction and the connection worked.
func (r Response) IsSuccessful() bool { return r.instruction && r.connection }
func (r Response) IsFailure() bool    { return !r.IsSuccessful() }

// Err maps a failed response onto ErrNotFound, ErrNotStored, ErrInvalid or
// ErrConnection. It returns nil for successful responses.
func (r Response) Err() error {
	if r.IsSuccessful() {
		return nil
	}
	kind := r.kind
	if kind == nil {
		kind = ErrInvalid
	}
	if r.reason == "" || r.reason == ReasonNotFound || r.reason == ReasonNotStored {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, r.reason)
}

// Int64 interprets the result as an integer, as returned by Increment.
func (r Response) Int64() (int64, bool) {
	switch v := r.result.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (r Response) String() string {
	if r.IsSuccessful() {
		return fmt.Sprintf("ok(%v)", r.result)
	}
	if !r.connection {
		return "connection failure: " + r.reason
	}
	return "instruction failure: " + r.reason
}
