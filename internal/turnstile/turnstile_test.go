package turnstile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySuccess(t *testing.T) {
	var gotSecret, gotToken, gotIP string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotSecret, gotToken, gotIP = r.Form.Get("secret"), r.Form.Get("response"), r.Form.Get("remoteip")
		_, _ = w.Write([]byte(`{"success":true,"hostname":"example.com"}`))
	}))
	defer srv.Close()

	v := New("s3cret", srv.URL, nil)
	ok, err := v.Verify(context.Background(), "tok", "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "203.0.113.7", gotIP)
}

func TestVerifyChallengeFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	ok, err := New("s", srv.URL, nil).Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsWithoutCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	v := New("s", srv.URL, nil)
	for _, tok := range []string{"", strings.Repeat("a", MaxTokenBytes+1)} {
		ok, err := v.Verify(context.Background(), tok, "")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Zero(t, calls.Load())
}

func TestVerifyRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ok, err := New("s", srv.URL, nil).Verify(context.Background(), "tok", "")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestVerifyRecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ok, err := New("s", srv.URL, nil).Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}
