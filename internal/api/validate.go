package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"rwa-portfolio/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("ledger_type", validateLedgerType)
	_ = v.RegisterValidation("ledger_status", validateLedgerStatus)
	return v
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validateLedgerType(fl validator.FieldLevel) bool {
	return domain.ValidTransactionType(domain.TransactionType(fl.Field().String()))
}

func validateLedgerStatus(fl validator.FieldLevel) bool {
	return domain.ValidTransactionStatus(domain.TransactionStatus(fl.Field().String()))
}

// decode reads a JSON body into dst and validates it. On failure the 400
// response has been written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		s.respondError(w, http.StatusBadRequest, "invalid JSON body", msg)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation failed", fieldErrors(err))
		return false
	}
	return true
}

// fieldErrors flattens validator errors to field -> failed rule.
func fieldErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		out[fe.Field()] = rule
	}
	return out
}

// validAddress reports whether s is a 0x-prefixed 20-byte hex address.
func (s *Server) validAddress(addr string) bool {
	return s.validate.Var(addr, "required,eth_addr") == nil
}
