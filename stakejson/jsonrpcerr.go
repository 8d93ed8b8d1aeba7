package stakejson

// Standard JSON-RPC 2.0 errors.
var (
	ErrRPCInvalidRequest = &RPCError{
		Code:    -32600,
		Message: "Invalid request",
	}
	ErrRPCMethodNotFound = &RPCError{
		Code:    -32601,
		Message: "Method not found",
	}
	ErrRPCInvalidParams = &RPCError{
		Code:    -32602,
		Message: "Invalid parameters",
	}
	ErrRPCInternal = &RPCError{
		Code:    -32603,
		Message: "Internal error",
	}
	ErrRPCParse = &RPCError{
		Code:    -32700,
		Message: "Parse error",
	}
)

// Errors of the staking engine itself.  These are surfaced to the caller
// verbatim; the engine performs no retries and no silent recovery.
var (
	ErrPoolNotFound = &RPCError{
		Code:    200,
		Message: "Pool not found",
	}
	ErrUnknownAsset = &RPCError{
		Code:    201,
		Message: "Unknown collateral asset",
	}
	ErrInvalidConfig = &RPCError{
		Code:    202,
		Message: "Invalid pool config (tier durations must strictly increase, rates must be non-negative)",
	}
	ErrLengthMismatch = &RPCError{
		Code:    203,
		Message: "Batch arrays have mismatched lengths",
	}
	// ErrPoolLiquidated blocks unstake and new deposits once a pool is
	// marked liquidated.  The exact message is a user-visible contract.
	ErrPoolLiquidated = &RPCError{
		Code:    204,
		Message: "liquidate",
	}
	ErrDuplicateItem = &RPCError{
		Code:    205,
		Message: "Item already staked",
	}
	ErrItemNotStaked = &RPCError{
		Code:    206,
		Message: "Item not staked",
	}
	ErrInsufficientReward = &RPCError{
		Code:    207,
		Message: "Insufficient reward balance",
	}
	ErrUnknownUser = &RPCError{
		Code:    208,
		Message: "Unknown user",
	}
)

var (
	ErrUnauthorized = &RPCError{
		Code:    302,
		Message: "User unauthorized",
	}
	ErrInvalidRequestParams = &RPCError{
		Code:    401,
		Message: "Invalid request params",
	}
	ErrInternal = &RPCError{
		Code:    500,
		Message: "Internal error",
	}
)
