package stakejson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCmdRoundTrip(t *testing.T) {
	cmd := NewStakeCmd("nft:apes", "alice", []uint64{1, 2, 3})
	marshalled, err := MarshalCmd(5, "stake", cmd)
	require.NoError(t, err)

	var request Request
	require.NoError(t, json.Unmarshal(marshalled, &request))
	assert.Equal(t, "stake", request.Method)

	parsed, err := UnmarshalCmd(&request)
	require.NoError(t, err)
	stakeCmd, ok := parsed.(*StakeCmd)
	require.True(t, ok)
	assert.Equal(t, "nft:apes", stakeCmd.AssetRef)
	assert.Equal(t, "alice", stakeCmd.UserRef)
	assert.Equal(t, []uint64{1, 2, 3}, stakeCmd.ItemIDs)
}

func TestUnmarshalCmdUnregisteredMethod(t *testing.T) {
	request := &Request{
		Jsonrpc: "1.0",
		Method:  "bogusmethod",
		Params:  json.RawMessage(`{}`),
		ID:      1,
	}
	_, err := UnmarshalCmd(request)
	require.Error(t, err)
	jerr, ok := err.(Error)
	require.True(t, ok)
	assert.Equal(t, ErrUnregisteredMethod, jerr.ErrorCode)
}

func TestRegisteredCmdMethods(t *testing.T) {
	methods := RegisteredCmdMethods()
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		seen[m] = true
	}
	for _, m := range []string{
		"version", "batchupdateasset", "liquidateasset", "stake",
		"unstake", "withdrawreward", "getassetdata", "getuserinfo",
		"calculatereward", "getpoolnum", "getstatus", "authenticate",
	} {
		assert.True(t, seen[m], "method %v not registered", m)
	}
}

func TestPoolLiquidatedErrorMessage(t *testing.T) {
	// The message is a user-visible contract relied upon by clients.
	assert.EqualError(t, ErrPoolLiquidated, "liquidate")
}

func TestMarshalResponse(t *testing.T) {
	marshalled, err := MarshalResponse(7, &StakeResult{Success: true}, nil)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(marshalled, &resp))
	require.Nil(t, resp.Error)

	var result StakeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.Success)

	marshalled, err = MarshalResponse(8, nil, ErrPoolLiquidated)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(marshalled, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPoolLiquidated.Code, resp.Error.Code)
}
