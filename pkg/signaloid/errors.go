package signaloid

import "fmt"

// APIError reports a non-2xx response from the Signaloid API.
type APIError struct {
	// Action is the operation being performed, for error messages.
	Action string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Body is the raw response body.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Action, e.StatusCode, e.Body)
}

// BuildFailedError reports a build that reached a terminal status other
// than Completed.
type BuildFailedError struct {
	BuildID string
	Status  string
	// Output is the build output log when it could be retrieved.
	Output []byte
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build %s failed with status %s", e.BuildID, e.Status)
}
