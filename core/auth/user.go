package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AvaProtocol/ap-router/core/chainio/signer"
)

// Identity is the caller behind a verified key.
type Identity struct {
	// nil for API keys
	Address *common.Address
	Roles   []ApiRole
}

func (i *Identity) IsAdmin() bool {
	return slices.Contains(i.Roles, AdminRole)
}

// CanActFor reports whether the caller may read or act for user.
func (i *Identity) CanActFor(user common.Address) bool {
	if i.IsAdmin() {
		return true
	}
	return i.Address != nil && *i.Address == user
}

// IssueUserKey verifies that req is signed by its owner and returns a JWT
// for that owner. The key never outlives the request nor MaxUserKeyTTL.
func IssueUserKey(secret []byte, req *KeyRequest, now time.Time) (string, error) {
	if !common.IsHexAddress(req.Owner) {
		return "", fmt.Errorf("%s: invalid owner", AuthenticationError)
	}
	expiredAt := time.Unix(req.ExpiredAt, 0)
	if !expiredAt.After(now) {
		return "", ErrorExpiredSignature
	}

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		return "", fmt.Errorf("%s: %w", InvalidSignatureFormat, err)
	}
	recovered, err := signer.RecoverMessage(GetKeyRequestMessage(req.Owner, req.ExpiredAt), signature)
	if err != nil {
		return "", fmt.Errorf("%s: %w", InvalidSignatureFormat, err)
	}
	owner := common.HexToAddress(req.Owner)
	if recovered != owner {
		return "", fmt.Errorf("%s: recovered %s", InvalidKeySignature, recovered.Hex())
	}

	if limit := now.Add(MaxUserKeyTTL); expiredAt.After(limit) {
		expiredAt = limit
	}

	claims := &jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiredAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    Issuer,
		Subject:   owner.Hex(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// CreateApiKey issues an API key carrying roles, valid for ttl.
func CreateApiKey(secret []byte, roles []ApiRole, ttl time.Duration) (string, error) {
	if len(roles) == 0 {
		return "", fmt.Errorf("an api key needs at least one role")
	}
	now := time.Now()
	claims := &APIClaim{
		RegisteredClaims: &jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   ApiKeySubject,
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyKey checks a user key or an API key and returns who it belongs to.
func VerifyKey(secret []byte, key string) (*Identity, error) {
	token, err := jwt.Parse(key, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}

		if token.Header["alg"] != JwtAlg {
			return nil, fmt.Errorf("invalid signing algorithm")
		}

		return secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", InvalidAuthenticationKey, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("Malform JWT Key Claim")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("Missing subject")
	}

	if sub == ApiKeySubject {
		rolesArray, ok := claims["roles"].([]any)
		if !ok {
			return nil, fmt.Errorf("%s: roles is not an array", InvalidAPIKey)
		}

		roles := []ApiRole{}
		for _, v := range rolesArray {
			roleStr, ok := v.(string)
			if !ok {
				continue // Skip non-string roles
			}
			roles = append(roles, ApiRole(roleStr))
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("%s: no role", InvalidAPIKey)
		}
		return &Identity{Roles: roles}, nil
	}

	if !common.IsHexAddress(sub) {
		return nil, fmt.Errorf("Invalid Subject")
	}
	address := common.HexToAddress(sub)
	return &Identity{Address: &address}, nil
}
