package wallet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrNoProviderFound     = errors.New("no wallet provider found")
	ErrUserRejected        = errors.New("user rejected the wallet connection")
	ErrNotConnected        = errors.New("no wallet account connected")
	ErrTransactionRejected = errors.New("transaction rejected by user")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrNetworkError        = errors.New("wallet network error")
)

// classifySendError maps a provider error to one of the wallet sentinels.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrTransactionRejected),
		errors.Is(err, ErrTransactionFailed),
		errors.Is(err, ErrNetworkError),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrNoProviderFound):
		return err
	case isNetworkError(err):
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	default:
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host")
}
