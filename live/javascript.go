package live

import (
	_ "embed"
	"net/http"
)

//go:embed live.js
var clientJS []byte

// Javascript handles serving the client side
// portion of live.
type Javascript struct{}

// ServeHTTP.
func (j Javascript) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/javascript")
	w.Write(clientJS)
}
