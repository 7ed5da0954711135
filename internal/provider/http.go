package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes bounds how much of a provider response is decoded.
const maxBodyBytes = 8 << 20

// Endpoint builds the absolute URL for path (which may carry a query) under baseURL.
func Endpoint(baseURL, path string, query url.Values) string {
	u := strings.TrimSuffix(baseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do sends req, returns a *StatusError for any non-2xx status and decodes a JSON body into out when
// out is non-nil.
func Do(ctx context.Context, client *http.Client, req *http.Request, op string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// IsStatus reports whether err is a *StatusError with one of codes.
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.StatusCode == c {
			return true
		}
	}
	return false
}

// ConnectionFailure builds a failed ConnectionResult from err.
func ConnectionFailure(err error) ConnectionResult {
	kind := Classify(err)
	return ConnectionResult{Success: false, Message: Describe(kind) + ": " + err.Error(), Code: kind}
}
