package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteOK(w, map[string]string{"result": "success"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteUnauthorized(t *testing.T) {
	t.Run("custom message with details", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteUnauthorized(w, "Login required", map[string]interface{}{"gate": "reports"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "unauthorized", response.Error)
		assert.Equal(t, "Login required", response.Message)
		assert.Equal(t, "reports", response.Details["gate"])
	})

	t.Run("default message", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteUnauthorized(w, "", nil))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Authentication required", response.Message)
		assert.Nil(t, response.Details)
	})
}

func TestWriteForbidden(t *testing.T) {
	t.Run("custom message", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteForbidden(w, "Insufficient permissions", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "forbidden", response.Error)
		assert.Equal(t, "Insufficient permissions", response.Message)
	})

	t.Run("default message", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteForbidden(w, "", nil))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Access forbidden", response.Message)
	})
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteNotFound(w, ""))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "not_found", response.Error)
	assert.Equal(t, "Resource not found", response.Message)
}

func TestWriteServiceUnavailable(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteServiceUnavailable(w, map[string]string{"status": "not_ready"}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "not_ready", response.Data.(map[string]interface{})["status"])
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteInternalServerError(w, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Error)
	assert.Equal(t, "Internal server error", response.Message)
}
