package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignatureLength = fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
)

func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	return crypto.HexToECDSA(privateKeyHex)
}

func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Generate EIP191 signature
func SignMessage(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	return SignHash(key, accounts.TextHash(data))
}

func SignMessageAsHex(key *ecdsa.PrivateKey, data []byte) (string, error) {
	signature, e := SignMessage(key, data)
	if e == nil {
		return hexutil.Encode(signature), nil
	}

	return "", e
}

// SignHash signs an already computed 32 byte digest, such as an EIP-712 typed
// data hash. V is returned as 27/28.
func SignHash(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	// https://stackoverflow.com/questions/69762108/implementing-ethereum-personal-sign-eip-191-from-go-ethereum-gives-different-s
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}

// RecoverHash returns the address that produced signature over digest.
// Signatures with V in either 0/1 or 27/28 form are accepted.
func RecoverHash(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignatureLength
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)
	// https://stackoverflow.com/questions/49085737/geth-ecrecover-invalid-signature-recovery-id
	if sig[crypto.RecoveryIDOffset] == 27 || sig[crypto.RecoveryIDOffset] == 28 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverMessage recovers the EIP191 signer of data.
func RecoverMessage(data []byte, signature []byte) (common.Address, error) {
	return RecoverHash(accounts.TextHash(data), signature)
}

// Verify checks that signatureHex is an EIP191 signature of data by expected.
func Verify(data []byte, signatureHex string, expected string) (bool, error) {
	signature, err := hexutil.Decode(signatureHex)
	if err != nil {
		return false, err
	}

	recovered, err := RecoverMessage(data, signature)
	if err != nil {
		return false, err
	}

	return recovered == common.HexToAddress(expected), nil
}
