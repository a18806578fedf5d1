package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/bnb/errors"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestDoAttachesHeaders(t *testing.T) {
	var got http.Header
	var gotQuery url.Values
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotQuery = r.URL.Query()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id": 1}`))
	}, WithUserAgent("bnb-test"))
	c.SetCredentials(staticToken("T1"))

	var out struct{ ID int64 }
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/listings",
		Query:  url.Values{"location": {"Nairobi"}},
		Body:   map[string]any{"title": "Loft"},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.ID)
	assert.Equal(t, "Bearer T1", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "bnb-test", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get(RequestIDHeader))
	assert.Equal(t, "Nairobi", gotQuery.Get("location"))
	assert.Equal(t, "Loft", gotBody["title"])
}

func TestDoBearerOverrideAndAnonymous(t *testing.T) {
	var auth []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	c.SetCredentials(staticToken("stored"))

	ctx := context.Background()
	require.NoError(t, c.Do(ctx, Request{Path: "/me", Bearer: "fresh"}, nil))
	require.NoError(t, c.Do(ctx, Request{Path: "/login", Anonymous: true}, nil))
	require.NoError(t, c.Do(ctx, Request{Path: "/listings"}, nil))

	assert.Equal(t, []string{"Bearer fresh", "", "Bearer stored"}, auth)
}

func TestDoNoCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})
	c.SetCredentials(staticToken(""))

	var out []int
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/listings"}, &out))
}

func TestDoClassifiesStatus(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		kind    errors.Kind
		message string
	}{
		{http.StatusUnauthorized, `{"msg": "Token has expired"}`, errors.KindUnauthorized, "Token has expired"},
		{http.StatusForbidden, `{"error": "Admin access required"}`, errors.KindForbidden, "Admin access required"},
		{http.StatusNotFound, `{"error": "Listing not found"}`, errors.KindNotFound, "Listing not found"},
		{http.StatusBadRequest, `{"error": "Email already exists"}`, errors.KindValidation, "Email already exists"},
		{http.StatusConflict, `not json`, errors.KindValidation, "conflict"},
		{http.StatusUnprocessableEntity, `{"message": "bad dates"}`, errors.KindValidation, "bad dates"},
		{http.StatusInternalServerError, `{"error": "Failed to save listing"}`, errors.KindServerFault, "Failed to save listing"},
		{http.StatusBadGateway, ``, errors.KindServerFault, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
			require.Error(t, err)
			e, ok := errors.As(err)
			require.True(t, ok, "error should be classified: %v", err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.status, e.Status)
			assert.NotEmpty(t, e.Details["request_id"])
		})
	}
}

func TestDoMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": `))
	})

	var out map[string]any
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/listings/1"}, &out)
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
}

func TestDoEmptyBodyWhenPayloadExpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var out map[string]any
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/me"}, &out)
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
}

func TestDoUnwrap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wrapped" {
			w.Write([]byte(`{"message": "Listing created successfully!", "listing": {"id": 9}}`))
			return
		}
		w.Write([]byte(`{"id": 10}`))
	})

	var out struct{ ID int64 }
	require.NoError(t, c.Do(context.Background(), Request{Path: "/wrapped", Unwrap: "listing"}, &out))
	assert.Equal(t, int64(9), out.ID)

	require.NoError(t, c.Do(context.Background(), Request{Path: "/plain", Unwrap: "listing"}, &out))
	assert.Equal(t, int64(10), out.ID)
}

func TestDoNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, WithLogger(quietLogger()))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/listings"}, nil)
	assert.Equal(t, errors.KindNetwork, errors.KindOf(err))
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"}, nil)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindNetwork, e.Kind)
	assert.Contains(t, e.Message, "timed out")
}

func TestDoCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/listings"}, nil)
	assert.Equal(t, errors.KindNetwork, errors.KindOf(err))
}

func TestInterceptorsSeeEveryResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/protected" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	})
	c.SetCredentials(staticToken("T1"))

	var mu sync.Mutex
	var seen []Response
	c.OnResponse(func(_ context.Context, resp Response) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, resp)
	})

	ctx := context.Background()
	require.NoError(t, c.Do(ctx, Request{Method: http.MethodGet, Path: "/open"}, nil))
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/protected"}, nil)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	require.Len(t, seen, 2)
	assert.Equal(t, http.StatusOK, seen[0].Status)
	assert.Equal(t, http.StatusUnauthorized, seen[1].Status)
	assert.Equal(t, "T1", seen[1].Token)
	assert.Equal(t, "/protected", seen[1].Path)
}

func TestRateLimit(t *testing.T) {
	var mu sync.Mutex
	var count int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}, WithRateLimit(1, 1))

	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/a"}, nil))

	// The bucket is empty, so a second call cannot be admitted before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/b"}, nil)
	assert.Equal(t, errors.KindNetwork, errors.KindOf(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := New(ts.URL+"/api/", WithLogger(quietLogger()))
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/listings"}, nil))
	assert.Equal(t, "/api/listings", path)
}
