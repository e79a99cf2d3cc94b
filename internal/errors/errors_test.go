package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/mnfit/internal/logging"
	"github.com/copyleftdev/mnfit/internal/optimization"
)

func TestWrapClassifiesOptimizationErrors(t *testing.T) {
	config := optimization.ConfigurationError("invalid parameter configuration",
		optimization.NewError("parameter \"a\" is missing"),
		optimization.NewError("parameter \"b\" is missing"))
	contract := optimization.DerivativeContractError("cost function derivatives are of incorrect size",
		optimization.NewError("Invalid gradient size: expected 2 value(s) (one per parameter), but got 1."))

	tests := []struct {
		name        string
		err         error
		wantCode    Code
		wantStatus  int
		wantDetails int
	}{
		{"configuration", config, CodeInvalidRequest, http.StatusBadRequest, 2},
		{"derivative contract", contract, CodeDerivativeContract, http.StatusUnprocessableEntity, 1},
		{"plain", stderrors.New("disk on fire"), CodeInternal, http.StatusInternalServerError, 0},
		{"api error", New(CodeNotFound, "fit not found"), CodeNotFound, http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Wrap(tt.err, "")
			require.NotNil(t, e)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantStatus, e.Status())
			assert.Len(t, e.Details, tt.wantDetails)
		})
	}

	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestErrorFormatting(t *testing.T) {
	e := Errorf(CodeConflict, "fit %s already finished", "f1").WithOperation("cancel")
	assert.Equal(t, "conflict: fit f1 already finished (operation=cancel)", e.Error())
	assert.NotEmpty(t, e.StackTrace())

	wrapped := Wrap(stderrors.New("boom"), "starting fit")
	assert.Equal(t, "internal: starting fit: boom", wrapped.Error())
	assert.EqualError(t, stderrors.Unwrap(wrapped), "boom")
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, New(CodeInvalidRequest, "invalid fit request").WithDetails("x and y differ in length"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got body
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, CodeInvalidRequest, got.Error.Code)
	assert.Equal(t, "invalid fit request", got.Error.Message)
	assert.Equal(t, []string{"x and y differ in length"}, got.Error.Details)
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := RecoveryMiddleware(logging.New(logging.InfoLevel, &buf))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("model exploded") }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/fits", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "model exploded")
	assert.Contains(t, buf.String(), "/api/v1/fits")
}
