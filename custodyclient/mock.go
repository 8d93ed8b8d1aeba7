package custodyclient

import (
	"context"
	"fmt"
	"sync"
)

// PoolAccount is the custody-side account items are parked under while
// staked.
const PoolAccount = "pool"

// MockCustodian is an in-memory Custodian used in tests and in simnet mode.
// Ownership is tracked per (asset, item); transfers verify the source owner
// the way a real custody service would.
type MockCustodian struct {
	mtx    sync.Mutex
	assets map[string]struct{}
	owners map[string]map[uint64]string

	// FailNextTransfers makes the next n transfer calls fail.
	FailNextTransfers int
}

var _ Custodian = (*MockCustodian)(nil)

func NewMockCustodian(assetRefs ...string) *MockCustodian {
	c := &MockCustodian{
		assets: make(map[string]struct{}),
		owners: make(map[string]map[uint64]string),
	}
	for _, ref := range assetRefs {
		c.AddAsset(ref)
	}
	return c
}

func (c *MockCustodian) AddAsset(assetRef string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.assets[assetRef] = struct{}{}
	if c.owners[assetRef] == nil {
		c.owners[assetRef] = make(map[uint64]string)
	}
}

// Mint assigns an item to an owner without a transfer.
func (c *MockCustodian) Mint(assetRef, owner string, itemIDs ...uint64) {
	c.AddAsset(assetRef)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, id := range itemIDs {
		c.owners[assetRef][id] = owner
	}
}

func (c *MockCustodian) TransferIn(ctx context.Context, assetRef, owner string, itemID uint64) error {
	return c.transfer(assetRef, owner, PoolAccount, itemID)
}

func (c *MockCustodian) TransferOut(ctx context.Context, assetRef, recipient string, itemID uint64) error {
	return c.transfer(assetRef, PoolAccount, recipient, itemID)
}

func (c *MockCustodian) transfer(assetRef, from, to string, itemID uint64) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.FailNextTransfers > 0 {
		c.FailNextTransfers--
		return fmt.Errorf("custody transfer refused")
	}
	items, ok := c.owners[assetRef]
	if !ok {
		return fmt.Errorf("unknown asset %v", assetRef)
	}
	if items[itemID] != from {
		return fmt.Errorf("item %v of asset %v not owned by %v", itemID, assetRef, from)
	}
	items[itemID] = to
	return nil
}

func (c *MockCustodian) OwnerOf(ctx context.Context, assetRef string, itemID uint64) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	items, ok := c.owners[assetRef]
	if !ok {
		return "", fmt.Errorf("unknown asset %v", assetRef)
	}
	owner, ok := items[itemID]
	if !ok {
		return "", fmt.Errorf("unknown item %v of asset %v", itemID, assetRef)
	}
	return owner, nil
}

func (c *MockCustodian) ResolveAsset(ctx context.Context, assetRef string) (bool, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_, ok := c.assets[assetRef]
	return ok, nil
}
