package errcode

import "errors"

// Internal sentinel errors.  These never cross the RPC boundary; handlers
// translate them to stakejson errors before replying.
var (
	ErrNilGormDB = errors.New("nil gorm db")
)
