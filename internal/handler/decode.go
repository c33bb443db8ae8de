package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var errEmptyBody = errors.New("empty request body")

// readBody reads the whole request body, writing the error response itself
// and returning false on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return nil, false
	}
	return body, true
}

// decodeJSON decodes a JSON object body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := unmarshalBody(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return false
	}
	return true
}

func unmarshalBody(body []byte, v any) error {
	if len(body) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, v)
}
