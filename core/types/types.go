package types

import "encoding/hex"

// Address identifies a participant account on the host ledger.
type Address [20]byte

// AssetID identifies an asset mint managed by the custody service. The zero
// value is the native-asset sentinel: operations that receive it take the
// native transfer path instead of the token path.
type AssetID [32]byte

// NativeAsset is the zero sentinel selecting the host's native asset.
var NativeAsset AssetID

// IsNative reports whether the asset id is the native-asset sentinel.
func (a AssetID) IsNative() bool { return a == NativeAsset }

// Hex returns the lowercase hex encoding of the address.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// Hex returns the lowercase hex encoding of the asset id.
func (a AssetID) Hex() string { return hex.EncodeToString(a[:]) }
