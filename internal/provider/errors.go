package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind classifies connectivity failures for user-facing reporting.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindRefused ErrorKind = "refused"
	KindTLS     ErrorKind = "tls"
	KindAuth    ErrorKind = "auth"
	KindUnknown ErrorKind = "unknown"
)

// StatusError is returned by adapters for unexpected HTTP statuses.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Classify maps err to an ErrorKind. A nil error is KindUnknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return KindAuth
		}
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		recordHeader     tls.RecordHeaderError
		certVerify       *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) || errors.As(err, &invalidCert) ||
		errors.As(err, &recordHeader) || errors.As(err, &certVerify) {
		return KindTLS
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return KindRefused
	case strings.Contains(msg, "x509") || strings.Contains(msg, "tls:") || strings.Contains(msg, "certificate"):
		return KindTLS
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	}
	return KindUnknown
}

// Describe returns a short human-readable explanation for kind.
func Describe(kind ErrorKind) string {
	switch kind {
	case KindTimeout:
		return "The media server did not respond in time"
	case KindRefused:
		return "The media server refused the connection"
	case KindTLS:
		return "The media server's TLS certificate could not be verified"
	case KindAuth:
		return "The media server rejected the configured token"
	default:
		return "Could not reach the media server"
	}
}
