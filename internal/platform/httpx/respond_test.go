package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

var errShortage = errors.New("shortage")

func TestRespondErrorRulesTakePrecedence(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("export: %w", errShortage)
	RespondError(rec, err, Rule{Target: errShortage, Status: http.StatusBadRequest, Title: "Insufficient Stock"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Insufficient Stock", body.Title)
	require.Contains(t, body.Detail, "shortage")
}

func TestRespondErrorSentinels(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", ErrNotFound):   http.StatusNotFound,
		fmt.Errorf("x: %w", ErrDuplicate):  http.StatusConflict,
		fmt.Errorf("x: %w", ErrValidation): http.StatusBadRequest,
		fmt.Errorf("x: %w", ErrConflict):   http.StatusConflict,
		errors.New("boom"):                 http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		require.Equal(t, status, rec.Code, err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password leaked"))
	require.NotContains(t, rec.Body.String(), "leaked")
	require.True(t, IsServerError(errors.New("boom")))
	require.False(t, IsServerError(ErrNotFound))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidatorDecimalFields(t *testing.T) {
	type input struct {
		Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
		Name     string          `json:"name" validate:"required"`
	}
	v := NewValidator()
	require.NoError(t, v.Struct(input{Quantity: decimal.NewFromInt(2), Name: "x"}))

	err := v.Struct(input{Quantity: decimal.Zero})
	fields := FieldErrors(err)
	require.Contains(t, fields, "quantity")
	require.Contains(t, fields, "name")
	require.Nil(t, FieldErrors(errors.New("plain")))
}

func TestAccountRequiresContextValue(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := Account(rec, req)
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = req.WithContext(shared.ContextWithAccount(req.Context(), 7))
	id, ok := Account(rec, req)
	require.True(t, ok)
	require.Equal(t, int64(7), id)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&offset=x", nil)
	require.Equal(t, 20, QueryInt(req, "limit", 50))
	require.Equal(t, 0, QueryInt(req, "offset", 0))
	require.Equal(t, 9, QueryInt(req, "missing", 9))
}
