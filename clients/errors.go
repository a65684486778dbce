package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind is the provider's classification of a failed chain operation.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindTransient ErrorKind = "transient"
	KindRejected  ErrorKind = "rejected"
	KindReverted  ErrorKind = "reverted"
	KindUnknown   ErrorKind = "unknown"
)

// Retryable reports whether an operation failing with this kind may be retried
// automatically.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

func (k ErrorKind) String() string {
	return string(k)
}

// JSON-RPC error codes with a fixed meaning.
const (
	codeUserRejected     = 4001   // EIP-1193
	codeUnauthorized     = 4100   // EIP-1193
	codeExecutionRevert  = 3      // geth eth_call / eth_estimateGas revert
	codeLimitExceeded    = -32005 // EIP-1474
	codeResourceNotFound = -32001 // EIP-1474
	codeResourceBusy     = -32002 // EIP-1474
)

var (
	ErrNoCode   = errors.New("no contract code at address")
	ErrNoSigner = errors.New("no signer configured on client")
)

// ProviderError is returned by every chain operation of this package.
type ProviderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification carried by err, classifying it if needed.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Classify(err)
}

// Classify maps a raw provider error onto an ErrorKind using typed error
// values and JSON-RPC error codes only.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	switch {
	case errors.Is(err, ethereum.NotFound), errors.Is(err, ErrNoCode):
		return KindNotFound
	case errors.Is(err, ErrNoSigner):
		return KindRejected
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			return KindRejected
		case codeExecutionRevert:
			return KindReverted
		case codeLimitExceeded, codeResourceBusy:
			return KindTransient
		case codeResourceNotFound:
			return KindNotFound
		}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError {
			return KindTransient
		}
		return KindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	return KindUnknown
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: Classify(err), Op: op, Err: err}
}
