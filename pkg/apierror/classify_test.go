package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_TransportFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	apiErr := Classify(0, nil, cause)

	require.NotNil(t, apiErr)
	assert.Equal(t, TypeNetwork, apiErr.Type)
	assert.Equal(t, SeverityHigh, apiErr.Severity)
	assert.ErrorIs(t, apiErr, cause)
}

func TestClassify_StatusTable(t *testing.T) {
	cases := []struct {
		status   int
		wantType Type
		wantSev  Severity
	}{
		{http.StatusBadRequest, TypeValidation, SeverityMedium},
		{http.StatusUnauthorized, TypeAuthentication, SeverityHigh},
		{http.StatusForbidden, TypeAuthorization, SeverityMedium},
		{http.StatusNotFound, TypeNotFound, SeverityLow},
		{http.StatusUnprocessableEntity, TypeValidation, SeverityMedium},
		{http.StatusInternalServerError, TypeServer, SeverityHigh},
		{http.StatusBadGateway, TypeServer, SeverityHigh},
		{http.StatusTooManyRequests, TypeClient, SeverityMedium},
		{http.StatusConflict, TypeClient, SeverityMedium},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			apiErr := Classify(tc.status, nil, nil)
			require.NotNil(t, apiErr)
			assert.Equal(t, tc.wantType, apiErr.Type)
			assert.Equal(t, tc.wantSev, apiErr.Severity)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestClassify_SuccessStatusesReturnNil(t *testing.T) {
	assert.Nil(t, Classify(http.StatusOK, nil, nil))
	assert.Nil(t, Classify(http.StatusCreated, nil, nil))
	assert.Nil(t, Classify(http.StatusNoContent, nil, nil))
	assert.Nil(t, Classify(http.StatusNotModified, nil, nil))
}

func TestClassify_PrefersServerMessage(t *testing.T) {
	apiErr := Classify(http.StatusUnauthorized, []byte(`{"message":"Invalid credentials"}`), nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	envelope := []byte(`{"success":false,"error":{"message":"Token has expired"}}`)
	apiErr = Classify(http.StatusUnauthorized, envelope, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, "Token has expired", apiErr.Message)
}

func TestClassify_ExtractsFieldErrors(t *testing.T) {
	body := []byte(`{"message":"Validation failed","errors":{"amount":"must be positive","date":"required"}}`)
	apiErr := Classify(http.StatusUnprocessableEntity, body, nil)

	require.NotNil(t, apiErr)
	assert.Equal(t, TypeValidation, apiErr.Type)
	assert.Equal(t, "must be positive", apiErr.Fields["amount"])
	assert.Equal(t, "required", apiErr.Fields["date"])
}

func TestClassify_MalformedBodyFallsBackToDefault(t *testing.T) {
	apiErr := Classify(http.StatusInternalServerError, []byte("<html>nope</html>"), nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, TypeServer, apiErr.Type)
	assert.Equal(t, defaultMessages[TypeServer], apiErr.Message)
}

func TestTypeOf_WrappedError(t *testing.T) {
	inner := New(TypeAuthorization, SeverityMedium, "denied")
	wrapped := fmt.Errorf("fetch accounts: %w", inner)

	assert.Equal(t, TypeAuthorization, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, TypeAuthorization))
	assert.Equal(t, TypeUnknown, TypeOf(errors.New("plain")))
}
