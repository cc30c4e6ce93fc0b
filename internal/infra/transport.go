package infra

import (
	"errors"
	"fmt"
	"net/url"
)

// StripURL removes the request URL from a failed HTTP call, keeping only
// scheme and host. The path and query of API URLs can carry credentials.
func StripURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return fmt.Errorf("%s %s: %w", urlErr.Op, redactURL(urlErr.URL), urlErr.Err)
}

// TransportError is StripURL for calls made under WithRetry: the result is
// retryable.
func TransportError(err error) error {
	return Retryable(StripURL(err))
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[request]"
	}
	return u.Scheme + "://" + u.Host
}
