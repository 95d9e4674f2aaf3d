package auth

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	Issuer = "AvaProtocol"
	JwtAlg = "HS256"

	// ApiKeySubject marks a token as an API key rather than a user key
	ApiKeySubject = "apikey"

	// AdminRole may call the admin endpoints and act on behalf of any user
	AdminRole    = ApiRole("admin")
	ReadonlyRole = ApiRole("readonly")

	// MaxUserKeyTTL caps the lifetime of a key issued from a signature
	MaxUserKeyTTL = 24 * time.Hour
)

var (
	ErrorUnAuthorized = fmt.Errorf("Unauthorized error")

	ErrorInvalidToken = fmt.Errorf("Invalid Bearer Token")

	ErrorMalformedAuthHeader = fmt.Errorf("Malform auth header")
	ErrorExpiredSignature    = fmt.Errorf("Signature is expired")
)

type ApiRole string
type APIClaim struct {
	*jwt.RegisteredClaims
	Roles []ApiRole `json:"roles"`
}

// GetKeyRequestMessage is the EIP191 message a user signs to obtain a key.
func GetKeyRequestMessage(owner string, expiredAt int64) []byte {
	return []byte(fmt.Sprintf("key request for: %s expired_at: %d", owner, expiredAt))
}
