package net

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// GetHTTPClient returns a client using the shared transport and a fresh
// cookie jar.
func GetHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating cookie jar: %w", err)
	}
	return &http.Client{
		Jar:       jar,
		Transport: reqTransport,
		Timeout:   downloadTimeout * time.Second,
	}, nil
}
