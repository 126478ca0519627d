package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for session backed HTTP requests.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request against a path of the configured site.
	// Returns the response body as bytes or an error.
	Get(ctx context.Context, path string, params map[string]string) ([]byte, error)
}
