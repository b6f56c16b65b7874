package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// maxRequestBody caps JSON payloads; booking forms are a few hundred bytes.
const maxRequestBody = 1 << 20

// decodeJSON reads one JSON document from the request body. An empty body
// surfaces as io.EOF so optional payloads can be detected by the caller.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(target)
}

func pathRef(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}
