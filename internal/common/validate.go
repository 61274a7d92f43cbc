package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is shared by handlers decoding request payloads.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeAndValidate decodes a JSON body into dst and runs struct validation.
// On failure it writes a 400 response and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return false
	}
	if err := Validate.Struct(dst); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid fields", ValidationDetails(err))
		return false
	}
	return true
}

// ValidationDetails maps field names to the failed rule.
func ValidationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
	}
	return out
}
