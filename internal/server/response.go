package server

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/oxen-go/oxen/internal/oxenerr"
)

// writeJSON encodes v as the response body with goccy/go-json, which
// the rest of the pack reaches for on JSON hot paths instead of
// encoding/json's reflection-heavy encoder — every branch list, node
// lookup, and row page this server returns goes through here.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError encodes err as the response body with the given status.
// Callers that want the status chosen from err's oxenerr kind (500 for
// anything else) go through replyErr.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusForError maps the typed error kinds that cross module
// boundaries onto HTTP status codes.
func statusForError(err error) int {
	switch err.(type) {
	case *oxenerr.NotFoundError:
		return http.StatusNotFound
	case *oxenerr.BranchAdvancedError, *oxenerr.NotFastForwardError:
		return http.StatusConflict
	case *oxenerr.HashMismatchError:
		return http.StatusConflict
	case *oxenerr.MergeConflictError:
		return http.StatusConflict
	case *oxenerr.WorkspaceBehindError:
		return http.StatusConflict
	case *oxenerr.QueryableWorkspaceNotFoundError:
		return http.StatusNotFound
	case *oxenerr.AlreadyIndexedError:
		return http.StatusConflict
	case *oxenerr.UnsupportedError:
		return http.StatusUnprocessableEntity
	case *oxenerr.MigrationRequiredError, *oxenerr.VersionMismatchError:
		return http.StatusUpgradeRequired
	case *oxenerr.UnauthorizedError:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// replyErr writes err with a status derived from its type.
func replyErr(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func errUnauthorized(reason string) error {
	return &oxenerr.UnauthorizedError{Reason: reason}
}
