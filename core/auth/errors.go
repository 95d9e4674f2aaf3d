package auth

// Messages prefixed to key issuance and verification errors.
const (
	AuthenticationError      = "key request rejected"
	InvalidSignatureFormat   = "malformed key request signature"
	InvalidKeySignature      = "key request is not signed by its owner"
	InvalidAuthenticationKey = "user key is invalid"
	InvalidAPIKey            = "api key is invalid"
)
