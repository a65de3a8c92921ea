package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind clasifica un fallo del backend en la taxonomía que la consola
// entiende. La distinción importa: el consejo al usuario es distinto para
// "no podés hacer esto" (hablá con tu administrador) que para "algo se
// rompió" (reintentá).
type Kind string

const (
	// KindPermissionDenied: 403 del backend o denegación del guard.
	KindPermissionDenied Kind = "permission_denied"
	// KindNotFound: id desactualizado, 404.
	KindNotFound Kind = "not_found"
	// KindValidation: campo faltante o inválido, 400/422.
	KindValidation Kind = "validation"
	// KindNetwork: el request no pudo completarse.
	KindNetwork Kind = "network"
	// KindConflictOrUnknown: cualquier otro non-2xx.
	KindConflictOrUnknown Kind = "conflict_or_unknown"
)

// Error es un fallo del colaborador backend ya traducido a la taxonomía.
type Error struct {
	Kind    Kind
	Code    string // code del payload estructurado, si lo hubo
	Message string // siempre legible para humanos
	Status  int    // status HTTP, 0 para fallos de red
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: [%s] %s", e.Code, e.Message)
	}
	return "api: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// kindFromStatus traduce un status HTTP al Kind más cercano.
func kindFromStatus(status int) Kind {
	switch status {
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindConflictOrUnknown
	}
}

// netError envuelve un fallo de transporte.
func netError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "request could not complete: " + err.Error(),
		cause:   err,
	}
}

// IsKind reporta si err es un *Error del kind dado.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsPermissionDenied reporta si err es una denegación de permisos.
func IsPermissionDenied(err error) bool {
	return IsKind(err, KindPermissionDenied)
}

// IsNotFound reporta si err es un id desactualizado.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
