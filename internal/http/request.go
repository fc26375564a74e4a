package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cardbudget/internal/core"
)

const (
	headerUserID = "X-User-ID"
	maxBodyBytes = 1 << 20
)

type userKey struct{}

// requireUser rejects requests without an X-User-ID header and stores the
// caller in the request context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(headerUserID))
		if user == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + headerUserID + " header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(r *http.Request) string {
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}

// decodeJSON reads a single JSON object into dst. Money values with more
// than two decimals fail here, as do unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "request body is empty"}
		}
		return &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "unexpected data after JSON object"}
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	return parseInt(name, r.PathValue(name))
}

func queryInt(r *http.Request, name string) (int, error) {
	return parseInt(name, r.URL.Query().Get(name))
}

func parseInt(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &core.ValidationError{Field: name, Reason: "is required"}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return v, nil
}

// yearMonth reads {year} and {month} from the path.
func yearMonth(r *http.Request) (int, int, error) {
	year, err := pathInt(r, "year")
	if err != nil {
		return 0, 0, err
	}
	month, err := pathInt(r, "month")
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}
