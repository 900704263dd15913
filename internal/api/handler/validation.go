package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"academic_user_service/internal/common"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RequestValidator checks request bodies before they reach the services.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, which is what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return &RequestValidator{validate: v}
}

// Validate returns a *common.ValidationError naming the failing fields.
func (rv *RequestValidator) Validate(s interface{}) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &common.ValidationError{Fields: fields}
	}
	return fmt.Errorf("validate request: %w", common.ErrBadRequest)
}

// DecodeAndValidate reads a JSON body into dst and validates it.
func (rv *RequestValidator) DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", common.ErrBadRequest)
	}
	return rv.Validate(dst)
}
