package utils

import (
	lru "github.com/hashicorp/golang-lru"
)

const itemRowCacheSize = 4096

// ItemRowDesc identifies one staked item row in the database.
type ItemRowDesc struct {
	AssetRef string
	UserRef  string
	ItemID   uint64
}

// ItemRowCache remembers the database row id of recently persisted staked
// items so a withdrawal does not need a lookup query before the delete.
type ItemRowCache struct {
	cache *lru.Cache
}

func NewItemRowCache() *ItemRowCache {
	// Size is fixed; lru.New only fails for non-positive sizes.
	c, _ := lru.New(itemRowCacheSize)
	return &ItemRowCache{cache: c}
}

func (u *ItemRowCache) Set(desc ItemRowDesc, id uint64) {
	u.cache.Add(desc, id)
}

func (u *ItemRowCache) Get(desc ItemRowDesc) (uint64, bool) {
	v, ok := u.cache.Get(desc)
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}

func (u *ItemRowCache) Remove(desc ItemRowDesc) {
	u.cache.Remove(desc)
}

var RowCache = NewItemRowCache()
