package common

import "errors"

// Error kinds shared by the vault, the transfer executor and the application layer.
// Wrap them with fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	// ErrInvalidInput is a malformed argument to a crypto or transfer primitive (caller bug).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPin means the PIN does not satisfy the PIN format policy.
	ErrInvalidPin = errors.New("PIN must be exactly 4 digits")

	// ErrIncorrectPinOrCorruptData is returned for a wrong PIN and for a tampered vault alike.
	ErrIncorrectPinOrCorruptData = errors.New("incorrect PIN or corrupted wallet data")

	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrSubmissionRejected = errors.New("transaction rejected by the network")

	// ErrNetwork is a transient chain client failure. The whole transfer may be retried.
	ErrNetwork = errors.New("network error")

	// ErrFatal is an entropy or signing failure. The process should not keep producing key material.
	ErrFatal = errors.New("fatal wallet error")
)
