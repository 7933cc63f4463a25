package server

import (
	"crypto/subtle"
	"net/http"
)

// TokenAuth admits engine connections carrying the shared token in the
// "token" query parameter. An empty token admits everyone.
type TokenAuth struct {
	Token string
}

func (m TokenAuth) Name() string {
	return "TokenAuth"
}

func (m TokenAuth) OnConnect(r *http.Request) error {
	if m.Token == "" {
		return nil
	}
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(m.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
