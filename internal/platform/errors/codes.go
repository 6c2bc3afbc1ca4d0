// Package errors provides structured error handling with stable machine codes.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Verification errors
	CodeStaleClaim   Code = "CREDENTIAL_STALE_CLAIM"
	CodeLookupFailed Code = "CREDENTIAL_LOOKUP_FAILED"

	// Authorization errors
	CodeUnknownCredential   Code = "ACTION_UNKNOWN_CREDENTIAL"
	CodeCredentialExpired   Code = "ACTION_CREDENTIAL_EXPIRED"
	CodeInvalidProof        Code = "ACTION_INVALID_PROOF"
	CodeInvalidSignature    Code = "ACTION_INVALID_SIGNATURE"
	CodeInsufficientBalance Code = "ACTION_INSUFFICIENT_BALANCE"
	CodeAlreadyInProgress   Code = "ACTION_ALREADY_IN_PROGRESS"

	// Threshold errors
	CodeThresholdNotConfigured Code = "THRESHOLD_NOT_CONFIGURED"

	// Vault/session errors
	CodeVaultNotFound  Code = "VAULT_NOT_FOUND"
	CodeSessionInvalid Code = "SESSION_INVALID"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Validation errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// GRPCCode maps an error code to its canonical gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeStaleClaim, CodeCredentialExpired:
		return codes.FailedPrecondition
	case CodeLookupFailed:
		return codes.Unavailable
	case CodeUnknownCredential, CodeVaultNotFound, CodeNotFound:
		return codes.NotFound
	case CodeInvalidProof, CodeInvalidSignature, CodeInsufficientBalance, CodeThresholdNotConfigured:
		return codes.PermissionDenied
	case CodeAlreadyInProgress, CodeAlreadyExists:
		return codes.AlreadyExists
	case CodeSessionInvalid:
		return codes.Unauthenticated
	case CodeInvalidArgument:
		return codes.InvalidArgument
	default:
		return codes.Unknown
	}
}

// HTTPStatus maps an error code to the HTTP status the API surfaces.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.AlreadyExists:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
