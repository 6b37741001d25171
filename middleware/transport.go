package middleware

import (
	"errors"
	"net/http"

	"github.com/BUICUONGG/courseauth"
)

// ErrNoClient is returned by a Transport without a Client.
var ErrNoClient = errors.New("middleware: transport has no client")

// Transport routes requests through Client.Execute.
//
// The Client must be built with an HTTPDoer that does not itself use this
// Transport, or every request would loop back here.
type Transport struct {
	Client *courseauth.Client
}

// RoundTrip closes req.Body in every case; Execute sends replayed copies.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		defer req.Body.Close()
	}
	if t == nil || t.Client == nil {
		return nil, ErrNoClient
	}
	return t.Client.Execute(req)
}
