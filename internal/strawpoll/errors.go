package strawpoll

import (
	"fmt"
	"io"
	"net/http"
)

// An apiError is a non-2xx answer from the poll service
type apiError struct {
	StatusCode int
	Body       string
}

func (e apiError) Error() string {
	return fmt.Sprintf("poll service responded %d: %s", e.StatusCode, e.Body)
}

func readErr(res *http.Response) apiError {
	byts, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return apiError{StatusCode: res.StatusCode, Body: fmt.Sprintf("error reading body: %s", err)}
	}

	return apiError{StatusCode: res.StatusCode, Body: string(byts)}
}
