// Package walleterr carries the verbatim error-code set of spec.md §6 and
// maps each code to an HTTP status, following the wrap-with-context idiom
// of the teacher's pkg/utils.Wrap but adding a stable machine-readable
// code alongside the human message.
package walleterr

import (
	"errors"
	"net/http"
)

// Code is one of the error codes enumerated in spec.md §6.
type Code string

const (
	NotAuthorized           Code = "NOT_AUTHORIZED"
	UpgradeNeeded           Code = "UPGRADE_NEEDED"
	WalletNotFound          Code = "WALLET_NOT_FOUND"
	WalletAlreadyExists     Code = "WALLET_ALREADY_EXISTS"
	WalletFull              Code = "WALLET_FULL"
	WalletNotComplete       Code = "WALLET_NOT_COMPLETE"
	WalletNeedScan          Code = "WALLET_NEED_SCAN"
	WalletBusy              Code = "WALLET_BUSY"
	CopayerInWallet         Code = "COPAYER_IN_WALLET"
	CopayerRegistered       Code = "COPAYER_REGISTERED"
	CopayerNotFound         Code = "COPAYER_NOT_FOUND"
	CopayerVoted            Code = "COPAYER_VOTED"
	TxNotFound              Code = "TX_NOT_FOUND"
	TxNotPending            Code = "TX_NOT_PENDING"
	TxAlreadyAccepted       Code = "TX_ALREADY_ACCEPTED"
	TxNotAccepted           Code = "TX_NOT_ACCEPTED"
	TxAlreadyBroadcasted    Code = "TX_ALREADY_BROADCASTED"
	TxCannotCreate          Code = "TX_CANNOT_CREATE"
	TxCannotRemove          Code = "TX_CANNOT_REMOVE"
	BadSignatures           Code = "BAD_SIGNATURES"
	InvalidAddress          Code = "INVALID_ADDRESS"
	InvalidChangeAddress    Code = "INVALID_CHANGE_ADDRESS"
	AddressNotFound         Code = "ADDRESS_NOT_FOUND"
	MainAddressGapReached   Code = "MAIN_ADDRESS_GAP_REACHED"
	TooManyKeys             Code = "TOO_MANY_KEYS"
	UnavailableUTXOs        Code = "UNAVAILABLE_UTXOS"
	HistoryLimitExceeded    Code = "HISTORY_LIMIT_EXCEEDED"
	LockTimeout             Code = "LOCK_TIMEOUT"
)

// Error is a client-facing error carrying a stable code and message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// New constructs an Error for code with message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NotAuthorizedf builds a NOT_AUTHORIZED error with a specific sub-message,
// per spec.md §4.1 ("Copayer not found", "Invalid signature", "Session expired").
func NotAuthorizedf(reason string) *Error {
	return &Error{Code: NotAuthorized, Message: reason}
}

// HTTPStatus maps a code to the response status spec.md §6 assigns it.
func HTTPStatus(code Code) int {
	switch code {
	case NotAuthorized:
		return http.StatusUnauthorized
	case "":
		return http.StatusOK
	default:
		return http.StatusBadRequest
	}
}

// AsError extracts a *Error from err, if it is (or wraps) one.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
