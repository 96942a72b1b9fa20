package errors

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

// Render writes err as a {"code","message"} JSON body with the status its
// code maps to. Unstructured errors become a generic 500 and are logged.
// A retry_after detail also sets the Retry-After header.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = InternalWrap(err, "Internal error")
	}
	if e.Code == ErrCodeInternal {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	body := map[string]interface{}{
		"code":    e.Code,
		"message": PublicMessage(e),
	}
	if retry, ok := e.Details["retry_after"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		body["retry_after"] = retry
	}
	render.Status(r, e.HTTPStatusCode())
	render.JSON(w, r, body)
}
