package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/maderasur/trozasgo/internal/apperr"
)

// envelope is the uniform response shape of every JSON endpoint.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondData sends a successful response carrying a payload.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

// respondMessage sends a successful response carrying a message and an
// optional payload.
func respondMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError sends a plain failure with a message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Message: message})
}

// respondAppError maps a service error onto the wire: status from the error
// kind, message masked for internal failures, field errors passed through.
func respondAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		log.Printf("Internal error: %v", err)
	}
	respondJSON(w, status, envelope{
		Success: false,
		Message: apperr.ClientMessage(err),
		Errors:  apperr.FieldsOf(err),
	})
}

// decodeAndValidate parses a JSON body into dst and runs struct validation.
// A false return means the response was already written.
func (r *Router) decodeAndValidate(w http.ResponseWriter, req *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := r.validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, envelope{
			Success: false,
			Message: "Validation failed",
			Errors:  validationFields(err),
		})
		return false
	}
	return true
}

func validationFields(err error) map[string][]string {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = []string{err.Error()}
		return fields
	}
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], "failed on rule: "+fe.Tag())
	}
	return fields
}
