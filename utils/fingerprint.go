package utils

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// ItemSetFingerprint returns a stable hex digest of an item-id set under a
// (asset, user) pair.  Settlement audit rows carry it so a persisted
// settlement can be matched against the exact items it covered.
func ItemSetFingerprint(assetRef string, userRef string, itemIDs []uint64) string {
	h := sha3.New256()
	h.Write([]byte(assetRef))
	h.Write([]byte{0})
	h.Write([]byte(userRef))
	h.Write([]byte{0})
	var buf [8]byte
	for _, id := range itemIDs {
		binary.BigEndian.PutUint64(buf[:], id)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
