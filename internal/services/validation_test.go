package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeForm struct {
	TipIDs []int64 `json:"tip_ids" validate:"required,min=1,dive,gt=0"`
	Actor  string  `validate:"required,min=2"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&outcomeForm{TipIDs: []int64{1, 2}, Actor: "digest"})
		assert.NoError(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		err := vh.ValidateStruct(&outcomeForm{Actor: "d"})
		require.Error(t, err)

		var fieldErrs validator.ValidationErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Len(t, fieldErrs, 2)
	})

	t.Run("non-positive tip id", func(t *testing.T) {
		err := vh.ValidateStruct(&outcomeForm{TipIDs: []int64{4, 0}, Actor: "digest"})
		require.Error(t, err)

		var fieldErrs validator.ValidationErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Len(t, fieldErrs, 1)
		assert.Equal(t, "gt", fieldErrs[0].Tag())
		assert.Equal(t, "tip_ids[1]", fieldErrs[0].Field())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Lock wait timed out, retry the batch", http.StatusConflict, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Lock wait timed out, retry the batch", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&outcomeForm{})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "tip_ids", "JSON name when tagged")
		assert.Contains(t, response.Details, "Actor", "Go name otherwise")
	})

	t.Run("non validation error is not detailed", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Bad", http.StatusBadRequest, errors.New("boom"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}
