package tracimsdk

import (
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
	"github.com/openmined/trsync/internal/remote"
)

// Tracim error codes the engine reacts to.
const (
	CodeWorkspaceNotFound     = 1002
	CodeContentNotFound       = 1003
	CodeContentNotEditable    = 2044
	CodeContentAlreadyExists  = 3002
	CodeAuthenticationFailure = 4001
)

// APIError is the error body returned by Tracim.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %d - %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the error onto the remote error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeContentAlreadyExists:
		return remote.ErrAlreadyExists
	case CodeContentNotFound, CodeWorkspaceNotFound:
		return remote.ErrNotFound
	case CodeContentNotEditable:
		return remote.ErrDeletedOrArchived
	case CodeAuthenticationFailure:
		return remote.ErrUnauthorized
	}
	switch e.Status {
	case http.StatusNotFound:
		return remote.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return remote.ErrUnauthorized
	case http.StatusRequestTimeout, http.StatusGatewayTimeout, http.StatusBadGateway, http.StatusServiceUnavailable:
		return remote.ErrTimeout
	}
	return nil
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		if remote.IsTimeout(requestErr) {
			return fmt.Errorf("http request error: %s: %w: %w", operation, remote.ErrTimeout, requestErr)
		}
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		apiErr, ok := resp.ErrorResult().(*APIError)
		if !ok || (apiErr.Code == 0 && apiErr.Message == "") {
			apiErr = &APIError{Message: http.StatusText(resp.GetStatusCode())}
		}
		apiErr.Status = resp.GetStatusCode()
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return nil
}
