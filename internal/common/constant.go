// Package common contains shared constants and sentinel errors used across
// filevault components.
package common

// Default cookie carrying the opaque uploader identity between chunk calls.
const DefaultUploaderCookieName = "filevault_uid"

// Query parameter names of a signed capability URL.
const (
	SignatureParamPrefix     = "X-Filevault-"
	SignatureExpirationParam = SignatureParamPrefix + "Expiration"
	SignatureNonceParam      = SignatureParamPrefix + "Nonce"
	SignatureIDParam         = SignatureParamPrefix + "Id"
	SignatureHeadersParam    = SignatureParamPrefix + "Headers"
	SignatureParam           = SignatureParamPrefix + "Signature"
)
