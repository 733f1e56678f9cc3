package api

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/zengm-games/zengm-sub016/cache"
	"github.com/zengm-games/zengm-sub016/database"
	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/service"
)

var ErrBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.MarshalWrite(w, p)
}

// decodeBody reads an optional JSON body into v. An empty body keeps v untouched.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest(err)
	}
	return nil
}

func writeRow(w http.ResponseWriter, row jsontext.Value) {
	w.Write(row)
	w.Write([]byte("\n"))
}

// InterceptorUnavailable rejects requests that need an open league.
func InterceptorUnavailable(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := s.Status()
			switch status.Status {
			case cache.StatusEmpty:
				box.SetError(ctx, fmt.Errorf("temporary unavailable: %w", service.ErrNoLeague))
				return
			case cache.StatusError:
				box.SetError(ctx, fmt.Errorf("temporary unavailable: %w: league '%s' failed to load: %s", service.ErrNoLeague, status.League, status.Error))
				return
			}
			next(ctx)
		}
	}
}

func errorStatus(ctx context.Context, err error) (int, string) {
	r := box.GetRequest(ctx)

	var syntaxErr *stdjson.SyntaxError
	var syntacticErr *jsontext.SyntacticError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "user is not authenticated"
	case errors.Is(err, box.ErrResourceNotFound):
		return http.StatusNotFound, fmt.Sprintf("resource '%s' not found", r.URL.String())
	case errors.Is(err, box.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, fmt.Sprintf("method '%s' not allowed", r.Method)
	case errors.As(err, &syntaxErr), errors.As(err, &syntacticErr):
		return http.StatusBadRequest, "Malformed JSON"
	case errors.Is(err, ErrBadRequest), errors.Is(err, database.ErrInvalidName), errors.Is(err, cache.ErrMissingKey),
		errors.Is(err, index.ErrInvalidKey):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, cache.ErrUnsupported):
		return http.StatusBadRequest, "Operation not supported by this collection"
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, database.ErrLeagueNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, cache.ErrUnknownCollection), errors.Is(err, cache.ErrUnknownIndex):
		return http.StatusNotFound, "Unknown collection or index"
	case errors.Is(err, cache.ErrDuplicateKey), errors.Is(err, database.ErrLeagueExists), errors.Is(err, service.ErrLeagueOpen):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, service.ErrNoLeague), errors.Is(err, cache.ErrNotReady):
		return http.StatusServiceUnavailable, "Open a league first"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	}
	return http.StatusInternalServerError, "Unexpected error"
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)

		status, description := errorStatus(ctx, err)
		w.WriteHeader(status)
		PrettyError{
			Message:     err.Error(),
			Description: description,
		}.MarshalTo(w)
	}
}
