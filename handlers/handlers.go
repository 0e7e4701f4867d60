package handlers

import (
	"encoding/json"
	"net/http"
)

// decodeJSON parses a JSON request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
