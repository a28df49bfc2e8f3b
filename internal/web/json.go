// internal/web/json.go
package web

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the top-level JSON wrapper for all responses, e.g.
// {"book": {...}} or {"loans": [...]}.
type Envelope map[string]any

// WriteJSON writes data as a JSON response with the given status code and
// optional extra headers.
func WriteJSON(w http.ResponseWriter, status int, data Envelope, headers http.Header) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	body = append(body, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	return nil
}

// ReadJSON decodes a single JSON value from the request body into dst,
// capping the body at 1 MB and rejecting trailing content.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

// IDParam extracts the named chi URL parameter as a positive int64.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return id, nil
}

// QueryString reads a string query parameter, returning defaultValue when absent.
func QueryString(qs url.Values, key, defaultValue string) string {
	if s := qs.Get(key); s != "" {
		return s
	}
	return defaultValue
}

// QueryInt64 reads an int64 query parameter, returning defaultValue when
// absent or unparseable.
func QueryInt64(qs url.Values, key string, defaultValue int64) int64 {
	s := qs.Get(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}
