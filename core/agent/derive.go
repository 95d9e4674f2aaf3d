package agent

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// DefaultImplementationHash versions the agent behaviour. Changing it moves
// every derived agent address.
var DefaultImplementationHash = crypto.Keccak256Hash([]byte("ap-router/agent/v1"))

// DeriveAddress computes the address of user's agent under router before it
// exists. It is a blake2b hash keyed by the implementation hash over the
// router and user addresses, truncated to 20 bytes.
func DeriveAddress(router, user common.Address, implementationHash common.Hash) common.Address {
	h, err := blake2b.New(common.AddressLength, implementationHash.Bytes())
	if err != nil {
		// only fails for sizes or keys blake2b does not support
		panic(err)
	}
	h.Write(router.Bytes())
	h.Write(user.Bytes())
	return common.BytesToAddress(h.Sum(nil))
}
