package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authd"
)

type recorded struct {
	path string
	auth string
	body []byte
}

func newResend(t *testing.T, status int) (*Client, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: []byte(buf.String())})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":"x"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{APIKey: "re_test", From: "Auth <auth@example.com>", BaseURL: srv.URL}, nil)
	return c, &reqs
}

func emails(n int) []authd.VerificationEmail {
	out := make([]authd.VerificationEmail, n)
	for i := range out {
		out[i] = authd.VerificationEmail{
			To:   "user@example.com",
			Code: "code",
			Link: "https://app.example.com/verify?code=code",
		}
	}
	return out
}

func TestSendSingleUsesEmailsEndpoint(t *testing.T) {
	c, reqs := newResend(t, http.StatusOK)

	require.NoError(t, c.SendVerification(context.Background(), emails(1)))
	require.Len(t, *reqs, 1)

	got := (*reqs)[0]
	assert.Equal(t, "/emails", got.path)
	assert.Equal(t, "Bearer re_test", got.auth)

	var msg message
	require.NoError(t, json.Unmarshal(got.body, &msg))
	assert.Equal(t, []string{"user@example.com"}, msg.To)
	assert.Equal(t, "Auth <auth@example.com>", msg.From)
	assert.Contains(t, msg.HTML, "https://app.example.com/verify?code=code")
}

func TestSendBatchChunks(t *testing.T) {
	c, reqs := newResend(t, http.StatusOK)

	require.NoError(t, c.SendVerification(context.Background(), emails(150)))
	require.Len(t, *reqs, 2)

	for i, want := range []int{100, 50} {
		assert.Equal(t, "/emails/batch", (*reqs)[i].path)
		var msgs []message
		require.NoError(t, json.Unmarshal((*reqs)[i].body, &msgs))
		assert.Len(t, msgs, want)
	}
}

func TestSendEmptyBatchIsNoop(t *testing.T) {
	c, reqs := newResend(t, http.StatusOK)

	require.NoError(t, c.SendVerification(context.Background(), nil))
	assert.Empty(t, *reqs)
}

func TestSendRejected(t *testing.T) {
	c, _ := newResend(t, http.StatusUnprocessableEntity)

	err := c.SendVerification(context.Background(), emails(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestMessageFallsBackToCode(t *testing.T) {
	c := New(Config{From: "a@example.com"}, nil)

	msg := c.message(authd.VerificationEmail{To: "b@example.com", Code: "abc"})
	assert.Contains(t, msg.Text, "abc")
	assert.Equal(t, "Verify your email", msg.Subject)
}
