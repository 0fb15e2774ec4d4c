package httpx

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
)

// ErrUnsupportedMediaType is returned by ParseForm for POST bodies that are
// not form encoded.
var ErrUnsupportedMediaType = errors.New("httpx: content type must be application/x-www-form-urlencoded")

// WriteJSON writes v as a JSON body with no-store caching headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache marks a response as uncacheable. Every token bearing response
// needs it.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseForm parses query and body parameters. POST requests must carry a
// form encoded body.
func ParseForm(r *http.Request) error {
	if r.Method == http.MethodPost {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/x-www-form-urlencoded" {
			return ErrUnsupportedMediaType
		}
	}
	return r.ParseForm()
}

// SplitFields splits a space delimited list such as an OAuth2 scope string.
func SplitFields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
