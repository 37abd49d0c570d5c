package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypePrecedence(t *testing.T) {
	t.Setenv("PROBLEM_BASE_URL", "")
	t.Setenv("APP_URL", "https://app.example.com/")
	require.Equal(t, "https://app.example.com/problems/invalid-session", Type("invalid-session"))

	t.Setenv("PROBLEM_BASE_URL", "https://errors.example.com/p/")
	require.Equal(t, "https://errors.example.com/p/invalid-session", Type("invalid-session"))
}

func TestWrite(t *testing.T) {
	t.Setenv("PROBLEM_BASE_URL", "https://errors.example.com")
	rec := httptest.NewRecorder()
	Unauthorized(rec, "missing-session", "no session")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, "https://errors.example.com/missing-session", p.Type)
	require.Equal(t, http.StatusUnauthorized, p.Status)
	require.Equal(t, "no session", p.Detail)
}
