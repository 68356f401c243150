// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

// Package validation holds the shared go-playground/validator instance of
// the HTTP layer. Field names in errors are the JSON names the client sent.
//
// The key_segment tag accepts values that are embedded verbatim in a Redis
// key: non-empty, at most 256 bytes, no whitespace, no ':' and none of the
// glob metacharacters "*?[]\", so a value can never widen a SCAN pattern.
//
//	type InvalidateRequest struct {
//	    Elements []models.Element `json:"elements" validate:"required,min=1,max=500,dive"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    body := verr.ToAPIError() // VALIDATION_ERROR with per-field details
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/tenantcore/internal/models"
)

const maxKeySegment = 256

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the process-wide validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		if err := v.RegisterValidation("key_segment", func(fl validator.FieldLevel) bool {
			return ValidKeySegment(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("validation: register key_segment: %v", err))
		}
		validate = v
	})
	return validate
}

// jsonName reports a field under its json tag; untagged fields keep the Go
// name.
func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ValidKeySegment reports whether s can be embedded in a Redis key.
func ValidKeySegment(s string) bool {
	if s == "" || len(s) > maxKeySegment {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`:*?[]\`, r)
	}) < 0
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string // namespaced, e.g. InvalidateRequest.elements[0].id
	Tag     string
	Param   string
	Message string
}

// RequestValidationError is every failed rule of one value.
type RequestValidationError struct {
	errors []FieldError
}

// Errors returns the failed rules in struct order.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	msgs := make([]string, 0, len(ve.errors))
	for _, fe := range ve.errors {
		msgs = append(msgs, fe.Message)
	}
	if len(msgs) == 0 {
		return "validation failed"
	}
	return strings.Join(msgs, "; ")
}

// ToAPIError renders the errors as a VALIDATION_ERROR body. A single
// failure is flattened into field and tag details.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	out := &models.APIError{Code: models.ErrValidation, Message: ve.Error()}
	if len(ve.errors) == 1 {
		out.Details = map[string]interface{}{"field": ve.errors[0].Field, "tag": ve.errors[0].Tag}
		return out
	}
	fields := make([]map[string]interface{}, 0, len(ve.errors))
	for _, fe := range ve.errors {
		fields = append(fields, map[string]interface{}{"field": fe.Field, "tag": fe.Tag, "message": fe.Message})
	}
	out.Details = map[string]interface{}{"fields": fields}
	return out
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return &RequestValidationError{errors: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}

	out := &RequestValidationError{errors: make([]FieldError, 0, len(failed))}
	for _, fe := range failed {
		out.errors = append(out.errors, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "key_segment":
		return fe.Field() + " must not contain whitespace, ':' or glob characters"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must contain at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must contain at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
