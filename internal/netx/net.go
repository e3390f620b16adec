// Package netx holds small helpers for talking to plain HTTP APIs.
package netx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %s; body: %s", e.Status, e.Body)
}

// Fetch sends req and returns the response body of a 2xx reply.
func Fetch(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

// FetchJSON is Fetch followed by decoding the body into out.
func FetchJSON(client *http.Client, req *http.Request, out any) error {
	body, err := Fetch(client, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
