// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSONError writes a structured error body and returns the number
// of body bytes written.
func writeJSONError(w http.ResponseWriter, status int, errMsg, detail string) int64 {
	b, err := json.Marshal(errorBody{Error: errMsg, Message: detail})
	if err != nil {
		// errorBody always marshals, but do not panic the handler.
		b = []byte(`{"error":"internal error"}`)
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(status)
	n, _ := w.Write(b)
	return int64(n)
}
