package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleBody struct {
	Name    string `json:"name" validate:"omitempty,min=1,max=5"`
	Status  string `json:"status" validate:"required,oneof=QUEUED RUNNING"`
	Percent *int   `json:"percent" validate:"omitempty,min=0,max=100"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantFields map[string]string
	}{
		{
			name: "valid",
			body: `{"status":"QUEUED","percent":10}`,
		},
		{
			name:    "malformed",
			body:    `{"status":`,
			wantErr: ErrInvalidJSON,
		},
		{
			name:    "empty",
			body:    ``,
			wantErr: ErrEmptyBody,
		},
		{
			name:       "missing required",
			body:       `{}`,
			wantFields: map[string]string{"status": "is required"},
		},
		{
			name: "several violations use json names",
			body: `{"name":"toolong","status":"DONE","percent":101}`,
			wantFields: map[string]string{
				"name":    "must be at most 5",
				"status":  "must be one of QUEUED RUNNING",
				"percent": "must be at most 100",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst sampleBody
			err := DecodeJSON(w, r, &dst, MaxJSONBodyBytes)

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantFields != nil:
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				require.Equal(t, tt.wantFields, ve.Fields)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestDecodeJSON_tooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"`+strings.Repeat("x", 64)+`"}`))
	w := httptest.NewRecorder()

	var dst sampleBody
	err := DecodeJSON(w, r, &dst, 16)
	require.ErrorIs(t, err, ErrInvalidJSON)
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteError(w, r, http.StatusNotFound, "job-not-found")

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"job-not-found"}`, w.Body.String())
}
