// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/models"
	"github.com/tomtom215/tenantcore/internal/validation"
)

// maxBodyBytes bounds request bodies of the JSON endpoints.
const maxBodyBytes = 1 << 20

// sanitizeLogValue quotes control characters so request values cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if isControl(r) {
			b.WriteString(`\x`)
			if r < 0x10 {
				b.WriteByte('0')
			}
			b.WriteString(strconv.FormatInt(int64(r), 16))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool { return r < 0x20 || r == 0x7F }

// writeEnvelope marshals body before touching the header so a marshal
// failure still yields a clean 500.
func writeEnvelope(w http.ResponseWriter, status int, body *models.APIResponse) {
	payload, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logging.Debug().Err(err).Msg("Client went away before the response was written")
	}
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	writeEnvelope(w, status, models.NewSuccess(data, start))
}

// respondError writes an error envelope. A non-nil cause is logged, never
// sent to the client.
func respondError(w http.ResponseWriter, status int, code models.ErrorCode, message string, cause error) {
	if cause != nil {
		logging.Error().
			Str("code", string(code)).
			Str("error", sanitizeLogValue(cause.Error())).
			Msg("API Error")
	}
	writeEnvelope(w, status, models.NewFailure(&models.APIError{Code: code, Message: message}))
}

// decodeAndValidate reads a JSON body into dst and runs the struct
// validators. On failure it has already written the response and returns
// false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, models.ErrBodyTooLarge, "Request body too large", nil)
		return false
	case err != nil:
		respondError(w, http.StatusBadRequest, models.ErrInvalidBody, "Could not read request body", nil)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrInvalidJSON, "Request body is not valid JSON", nil)
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		writeEnvelope(w, http.StatusBadRequest, models.NewFailure(verr.ToAPIError()))
		return false
	}
	return true
}
