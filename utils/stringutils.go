package utils

import (
	"github.com/stakesuite/nft-stakepool-server/constdef"
)

// CheckUserRefValidity checks whether the given user reference is valid:
// 1. the length should be between 1-100.
// 2. only letters, numbers and _, @ and . are allowed
func CheckUserRefValidity(userRef string) bool {
	refLen := len(userRef)
	if refLen < constdef.MinUserRefLength || refLen > constdef.MaxUserRefLength {
		return false
	}
	for _, ch := range userRef {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '@' || ch == '_' || ch == '.') {
			return false
		}
	}
	return true
}

// CheckAssetRefValidity checks whether the given collateral asset reference
// is well formed.  Resolution against the custody registry happens
// separately.
func CheckAssetRefValidity(assetRef string) bool {
	refLen := len(assetRef)
	if refLen < 1 || refLen > constdef.MaxAssetRefLength {
		return false
	}
	for _, ch := range assetRef {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-' || ch == ':' || ch == '.') {
			return false
		}
	}
	return true
}
