package stakejson

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// RPCError represents an error that is used as a part of a JSON-RPC Response
// object.
type RPCError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Guarantee RPCError satisfies the builtin error interface.
var _, _ error = RPCError{}, (*RPCError)(nil)

// Error returns a string describing the RPC error.  This satisfies the
// builtin error interface.
func (e RPCError) Error() string {
	return e.Message
}

// NewRPCError constructs and returns a new JSON-RPC error that is suitable
// for use in a JSON-RPC Response object.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// ErrorCode identifies a kind of command registry error.
type ErrorCode int

const (
	// ErrDuplicateMethod indicates a command with the specified method
	// already exists.
	ErrDuplicateMethod ErrorCode = iota

	// ErrInvalidType indicates a type was passed that is not the required
	// type.
	ErrInvalidType

	// ErrUnregisteredMethod indicates a method was specified that has not
	// been registered.
	ErrUnregisteredMethod
)

// Error identifies a general error related to command handling, as opposed to
// an RPCError which is meant to be returned to the caller.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

func makeError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// Request is a type for raw JSON-RPC 1.0 requests.  The Method field
// identifies the specific command type which in turn leads to different
// parameters.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// Response is the general form of a JSON-RPC response.  The type of the
// Result field varies from one command to the next, so it is implemented as
// an interface.  The ID field has to be a pointer to allow for a nil value
// when empty.
type Response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     *interface{}    `json:"id"`
}

// NewResponse returns a new JSON-RPC response object given the provided id,
// marshalled result, and RPC error.  This function is only provided in case
// the caller wants to construct raw responses for some reason.
func NewResponse(id interface{}, marshalledResult []byte, rpcErr *RPCError) (*Response, error) {
	if !IsValidIDType(id) {
		str := fmt.Sprintf("the id of type '%T' is invalid", id)
		return nil, makeError(ErrInvalidType, str)
	}

	pid := &id
	return &Response{
		Result: marshalledResult,
		Error:  rpcErr,
		ID:     pid,
	}, nil
}

// MarshalResponse marshals the passed id, result, and RPCError to a JSON-RPC
// response byte slice that is suitable for transmission to a JSON-RPC client.
func MarshalResponse(id interface{}, result interface{}, rpcErr *RPCError) ([]byte, error) {
	marshalledResult, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	response, err := NewResponse(id, marshalledResult, rpcErr)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&response)
}

// IsValidIDType checks that the ID field (which can go in any of the JSON-RPC
// requests, responses, or notifications) is valid.  JSON-RPC 1.0 allows any
// valid JSON type.  JSON-RPC 2.0 (which pool clients are expected to use)
// only allows string, number, or null, so this function restricts the
// allowed types to that list.
func IsValidIDType(id interface{}) bool {
	switch id.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		string,
		nil:
		return true
	default:
		return false
	}
}

var (
	// methodToConcreteType maps a method to the underlying concrete type
	// for the command.
	methodToConcreteType = make(map[string]reflect.Type)

	// registerLock protects the registered method map.
	registerLock sync.RWMutex
)

// RegisterCmd registers a new command that will automatically marshal to and
// from JSON-RPC with full type checking.  The passed command must be a
// pointer to a struct whose exported fields carry json tags describing the
// wire names of the parameters.
func RegisterCmd(method string, cmd interface{}) error {
	registerLock.Lock()
	defer registerLock.Unlock()

	if _, ok := methodToConcreteType[method]; ok {
		str := fmt.Sprintf("method %q is already registered", method)
		return makeError(ErrDuplicateMethod, str)
	}

	rtp := reflect.TypeOf(cmd)
	if rtp.Kind() != reflect.Ptr {
		str := fmt.Sprintf("type must be *struct not '%s (%s)'", rtp,
			rtp.Kind())
		return makeError(ErrInvalidType, str)
	}
	rt := rtp.Elem()
	if rt.Kind() != reflect.Struct {
		str := fmt.Sprintf("type must be *struct not '%s (*%s)'",
			rtp, rt.Kind())
		return makeError(ErrInvalidType, str)
	}

	methodToConcreteType[method] = rtp
	return nil
}

// MustRegisterCmd performs the same function as RegisterCmd except it panics
// if there is an error.  This should only be called from package init
// functions.
func MustRegisterCmd(method string, cmd interface{}) {
	if err := RegisterCmd(method, cmd); err != nil {
		panic(fmt.Sprintf("failed to register type %q: %v", method, err))
	}
}

// RegisteredCmdMethods returns a sorted-insensitive list of methods that have
// been registered.
func RegisteredCmdMethods() []string {
	registerLock.RLock()
	defer registerLock.RUnlock()

	methods := make([]string, 0, len(methodToConcreteType))
	for k := range methodToConcreteType {
		methods = append(methods, k)
	}
	return methods
}

// UnmarshalCmd unmarshals a JSON-RPC request into a suitable concrete
// command so long as the method type contained within the marshalled request
// is registered.  Params are expected to be a single JSON object whose keys
// match the json tags of the registered command struct.
func UnmarshalCmd(r *Request) (interface{}, error) {
	registerLock.RLock()
	rtp, ok := methodToConcreteType[r.Method]
	registerLock.RUnlock()
	if !ok {
		str := fmt.Sprintf("%q is not registered", r.Method)
		return nil, makeError(ErrUnregisteredMethod, str)
	}

	rvp := reflect.New(rtp.Elem())
	cmd := rvp.Interface()
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, cmd); err != nil {
			str := fmt.Sprintf("invalid params for method %q: %v",
				r.Method, err)
			return nil, makeError(ErrInvalidType, str)
		}
	}
	return cmd, nil
}

// MarshalCmd marshals the passed command to a JSON-RPC request byte slice
// that is suitable for transmission to an RPC server.  The provided method
// must be registered.
func MarshalCmd(id interface{}, method string, cmd interface{}) ([]byte, error) {
	registerLock.RLock()
	_, ok := methodToConcreteType[method]
	registerLock.RUnlock()
	if !ok {
		str := fmt.Sprintf("%q is not registered", method)
		return nil, makeError(ErrUnregisteredMethod, str)
	}

	if !IsValidIDType(id) {
		str := fmt.Sprintf("the id of type '%T' is invalid", id)
		return nil, makeError(ErrInvalidType, str)
	}

	params, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req := Request{
		Jsonrpc: "1.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}
	return json.Marshal(&req)
}
