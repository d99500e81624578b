package store

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// hashOf returns a CIDv0-shaped content hash for data: the base58btc
// encoding of a sha2-256 multihash (prefix bytes 0x12, 0x20 followed
// by the 32-byte digest). Real store backends compute and assign
// this hash server-side (HTTPStore takes it from the daemon's reply);
// the memory and S3 backends compute it themselves.
func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	mh := make([]byte, 0, 2+len(sum))
	mh = append(mh, 0x12, 0x20)
	mh = append(mh, sum[:]...)
	return base58.Encode(mh)
}
