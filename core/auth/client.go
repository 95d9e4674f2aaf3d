package auth

import (
	"crypto/ecdsa"
	"time"

	"github.com/AvaProtocol/ap-router/core/chainio/signer"
)

// KeyRequest is what a client submits to exchange a signature for a key.
type KeyRequest struct {
	Owner     string `json:"owner" validate:"required,eth_addr"`
	ExpiredAt int64  `json:"expired_at" validate:"required,gt=0"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// SignKeyRequest builds a key request for the owner of key valid for ttl.
func SignKeyRequest(key *ecdsa.PrivateKey, ttl time.Duration) (*KeyRequest, error) {
	owner := signer.AddressOf(key).Hex()
	expiredAt := time.Now().Add(ttl).Unix()

	signature, err := signer.SignMessageAsHex(key, GetKeyRequestMessage(owner, expiredAt))
	if err != nil {
		return nil, err
	}

	return &KeyRequest{Owner: owner, ExpiredAt: expiredAt, Signature: signature}, nil
}
