package custodyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/stakesuite/nft-stakepool-server/stakejson"
)

// Custodian is the item custody collaborator.  It holds the collateral
// items while they are staked; the engine never keeps items itself.
type Custodian interface {
	// TransferIn pulls one item from its current owner into pool custody.
	TransferIn(ctx context.Context, assetRef, owner string, itemID uint64) error

	// TransferOut releases one item from pool custody to the recipient.
	TransferOut(ctx context.Context, assetRef, recipient string, itemID uint64) error

	// OwnerOf returns the current owner of an item.
	OwnerOf(ctx context.Context, assetRef string, itemID uint64) (string, error)

	// ResolveAsset reports whether the collateral type is known to custody.
	ResolveAsset(ctx context.Context, assetRef string) (bool, error)
}

// ConnConfig describes the connection to a custody RPC server.
type ConnConfig struct {
	Host string
	User string
	Pass string
}

// RPCClient talks JSON-RPC over HTTP POST to an item custody server.
type RPCClient struct {
	config     *ConnConfig
	httpClient *http.Client
	nextID     uint64
}

var _ Custodian = (*RPCClient)(nil)

func NewRPCClient(config *ConnConfig) *RPCClient {
	return &RPCClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type transferInCmd struct {
	AssetRef string `json:"assetref"`
	Owner    string `json:"owner"`
	ItemID   uint64 `json:"itemid"`
}

type transferOutCmd struct {
	AssetRef  string `json:"assetref"`
	Recipient string `json:"recipient"`
	ItemID    uint64 `json:"itemid"`
}

type ownerOfCmd struct {
	AssetRef string `json:"assetref"`
	ItemID   uint64 `json:"itemid"`
}

type resolveAssetCmd struct {
	AssetRef string `json:"assetref"`
}

func (c *RPCClient) TransferIn(ctx context.Context, assetRef, owner string, itemID uint64) error {
	cmd := &transferInCmd{AssetRef: assetRef, Owner: owner, ItemID: itemID}
	_, err := c.sendCmd(ctx, "transferin", cmd)
	if err != nil {
		log.Debugf("transferin of item %v (asset %v) failed: %v", itemID, assetRef, err)
	}
	return err
}

func (c *RPCClient) TransferOut(ctx context.Context, assetRef, recipient string, itemID uint64) error {
	cmd := &transferOutCmd{AssetRef: assetRef, Recipient: recipient, ItemID: itemID}
	_, err := c.sendCmd(ctx, "transferout", cmd)
	if err != nil {
		log.Debugf("transferout of item %v (asset %v) failed: %v", itemID, assetRef, err)
	}
	return err
}

func (c *RPCClient) OwnerOf(ctx context.Context, assetRef string, itemID uint64) (string, error) {
	cmd := &ownerOfCmd{AssetRef: assetRef, ItemID: itemID}
	result, err := c.sendCmd(ctx, "ownerof", cmd)
	if err != nil {
		return "", err
	}
	var owner string
	if err := json.Unmarshal(result, &owner); err != nil {
		return "", err
	}
	return owner, nil
}

func (c *RPCClient) ResolveAsset(ctx context.Context, assetRef string) (bool, error) {
	cmd := &resolveAssetCmd{AssetRef: assetRef}
	result, err := c.sendCmd(ctx, "resolveasset", cmd)
	if err != nil {
		return false, err
	}
	var known bool
	if err := json.Unmarshal(result, &known); err != nil {
		return false, err
	}
	return known, nil
}

// sendCmd marshals a JSON-RPC request with the given method and params
// object, posts it, and returns the raw result.
func (c *RPCClient) sendCmd(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddUint64(&c.nextID, 1)
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := &stakejson.Request{
		Jsonrpc: "1.0",
		Method:  method,
		Params:  rawParams,
		ID:      id,
	}
	marshalledJSON, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := "http://" + c.config.Host
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(marshalledJSON))
	if err != nil {
		return nil, err
	}
	httpReq.Close = true
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.User != "" {
		httpReq.SetBasicAuth(c.config.User, c.config.Pass)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	respBytes, err := ioutil.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, err
	}

	var resp stakejson.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("custody server status %v: %v", httpResp.Status, string(respBytes))
		}
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
