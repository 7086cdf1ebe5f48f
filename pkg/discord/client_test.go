package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHeader(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "bot token has three dot-separated segments",
			token: "MTIzNDU2Nzg5.GabcdE.xyz-longsecretpart",
			want:  "Bot MTIzNDU2Nzg5.GabcdE.xyz-longsecretpart",
		},
		{
			name:  "oauth bearer token has no dots",
			token: "h9K2mN4pQ7rS1tU3vW5xY8zA",
			want:  "Bearer h9K2mN4pQ7rS1tU3vW5xY8zA",
		},
		{
			name:  "one dot is not a bot token",
			token: "a.b",
			want:  "Bearer a.b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AuthHeader(tc.token))
		})
	}
}

func TestGetGuildMemberNotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guilds/1/members/2", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": 10007, "message": "Unknown Member"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	member, err := c.GetGuildMember(context.Background(), "1", "2")
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestClientSendsBotAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id": "1", "name": "Test Guild"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	g, err := c.GetGuild(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Bot a.b.c", gotAuth)
	assert.Equal(t, "Test Guild", g.Name)
}

func TestClientRetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id": "1", "name": "g"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	g, err := c.GetGuild(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "1", g.ID)
}

func TestClientBoundsRateLimitRetries(t *testing.T) {
	// A persistent rate limit must surface as a 429 instead of looping.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "You are being rate limited."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	_, err := c.GetGuild(context.Background(), "1")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, int32(maxRateLimitRetries+1), calls.Load())
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code": 50001, "message": "Missing Access"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	_, err := c.GetGuildChannels(context.Background(), "1")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, 50001, apiErr.Code)
	assert.Equal(t, "Missing Access", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestDeleteMessageIgnoresNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": 10008, "message": "Unknown Message"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	assert.NoError(t, c.DeleteMessage(context.Background(), "10", "20"))
}

func TestListGuildMembersPaginates(t *testing.T) {
	// First page full (simulated with a small limit check via the after
	// param), second page short.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			// Full page of 1000 members ending at id 999.
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[`))
			for i := 0; i < 1000; i++ {
				if i > 0 {
					_, _ = w.Write([]byte(`,`))
				}
				_, _ = w.Write([]byte(`{"user": {"id": "` + string(rune('a'+i%26)) + `"}, "roles": []}`))
			}
			_, _ = w.Write([]byte(`]`))
			return
		}
		_, _ = w.Write([]byte(`[{"user": {"id": "last"}, "roles": []}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "a.b.c")
	members, err := c.ListGuildMembers(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, members, 1001)
}

func TestOAuthAuthorizationURL(t *testing.T) {
	o := NewOAuth("client-1", "secret", "https://discord.example/api/v10")
	u := o.AuthorizationURL("state-xyz", "https://app.example/auth/callback")

	assert.Contains(t, u, "https://discord.example/api/v10/oauth2/authorize?")
	assert.Contains(t, u, "client_id=client-1")
	assert.Contains(t, u, "state=state-xyz")
	assert.Contains(t, u, "scope=identify+guilds")
	assert.Contains(t, u, "redirect_uri=https%3A%2F%2Fapp.example%2Fauth%2Fcallback")
}
