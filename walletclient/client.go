package walletclient

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

// ValueTransferor is the fungible value collaborator.  Reward withdrawals
// are paid out through it; the engine only keeps the accounting.
type ValueTransferor interface {
	// Credit pays amount reward units to the recipient.
	Credit(ctx context.Context, recipient string, amount int64) error

	// BalanceOf returns the recipient's current balance.
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// ConnConfig describes the connection to a value transfer RPC server.
type ConnConfig struct {
	Host string
	User string
	Pass string
}

// RPCClient talks JSON-RPC over HTTP POST to a value transfer server.
type RPCClient struct {
	config     *ConnConfig
	httpClient *http.Client
	nextID     uint64
}

var _ ValueTransferor = (*RPCClient)(nil)

func NewRPCClient(config *ConnConfig) *RPCClient {
	return &RPCClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type creditCmd struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type balanceOfCmd struct {
	Account string `json:"account"`
}

func (c *RPCClient) Credit(ctx context.Context, recipient string, amount int64) error {
	cmd := &creditCmd{Recipient: recipient, Amount: amount}
	_, err := c.sendCmd(ctx, "credit", cmd)
	if err != nil {
		log.Debugf("credit of %v to %v failed: %v", amount, recipient, err)
	}
	return err
}

func (c *RPCClient) BalanceOf(ctx context.Context, account string) (int64, error) {
	cmd := &balanceOfCmd{Account: account}
	result, err := c.sendCmd(ctx, "balanceof", cmd)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := json.Unmarshal(result, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

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
			return nil, fmt.Errorf("wallet server status %v: %v", httpResp.Status, string(respBytes))
		}
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
