package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/gateway"
	"github.com/cartomap/cartomap-client/internal/config"
	"github.com/cartomap/cartomap-client/tokenstore"
	"github.com/cartomap/cartomap-client/tokenstore/storefakes"
)

// fakeProvider stands in for the session manager: EnsureRefreshed swaps the
// stored access token for newToken, mimicking the persist-before-return
// contract of the real coordinator.
type fakeProvider struct {
	lock     sync.Mutex
	store    tokenstore.Store
	newToken string
	err      error
	refresh  int
	logouts  int
}

func (f *fakeProvider) EnsureRefreshed(ctx context.Context) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.refresh++
	if f.err != nil {
		f.logouts++
		f.store.Clear()
		return "", f.err
	}
	tokens := f.store.Get()
	tokens.AccessToken = f.newToken
	if err := f.store.Set(tokens); err != nil {
		return "", err
	}
	return f.newToken, nil
}

func (f *fakeProvider) Logout() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.logouts++
	f.store.Clear()
}

func (f *fakeProvider) counts() (refresh, logouts int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refresh, f.logouts
}

type fixture struct {
	store    *storefakes.FakeStore
	provider *fakeProvider
	gw       *gateway.Gateway
	server   *httptest.Server
}

func setup(t *testing.T, router *mux.Router, maxRetries int) *fixture {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	store := storefakes.NewFakeStore()
	provider := &fakeProvider{store: store, newToken: "new"}
	cfg := config.Static{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
	gw := gateway.New(cfg, store, provider)
	return &fixture{store: store, provider: provider, gw: gw, server: server}
}

func TestDoAttachesStoredBearerToken(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.HandleFunc("/boundaries", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)
	require.NoError(t, f.store.Set(tokenstore.Tokens{AccessToken: "abc", RefreshToken: "r"}))

	resp, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/boundaries",
		RequiresAuth: true,
	})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, "Bearer abc", seen)
}

func TestDoWithoutStoredTokenSendsNoBearer(t *testing.T) {
	var sawHeader bool
	router := mux.NewRouter()
	router.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)

	_, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/public",
		RequiresAuth: true,
	})
	require.NoError(t, err)
	require.False(t, sawHeader)
}

func TestDoRefreshesAndReplaysOnceOn401(t *testing.T) {
	var (
		lock    sync.Mutex
		headers []string
	)
	router := mux.NewRouter()
	router.HandleFunc("/profiles", func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		lock.Unlock()

		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"population":1234}`))
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)
	require.NoError(t, f.store.Set(tokenstore.Tokens{AccessToken: "expired", RefreshToken: "valid"}))

	resp, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/profiles",
		RequiresAuth: true,
	})
	require.NoError(t, err)
	require.True(t, resp.OK())

	refreshes, logouts := f.provider.counts()
	require.Equal(t, 1, refreshes)
	require.Zero(t, logouts)
	// The replay must use the refreshed token, never the original.
	require.Equal(t, []string{"Bearer expired", "Bearer new"}, headers)
}

func TestSecondUnauthorizedAfterRefreshIsHardFailure(t *testing.T) {
	var calls int
	router := mux.NewRouter()
	router.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)
	require.NoError(t, f.store.Set(tokenstore.Tokens{AccessToken: "expired", RefreshToken: "valid"}))

	_, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/jobs",
		RequiresAuth: true,
	})
	require.True(t, apierr.IsAuthentication(err))

	refreshes, logouts := f.provider.counts()
	require.Equal(t, 1, refreshes, "a second 401 must not trigger a second refresh cycle")
	require.Equal(t, 1, logouts)
	require.Equal(t, 2, calls, "exactly one replay after refresh")
	require.True(t, f.store.Get().Empty())
}

func TestRefreshFailurePropagatesWithoutReplay(t *testing.T) {
	var calls int
	router := mux.NewRouter()
	router.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)
	f.provider.err = &apierr.AuthenticationError{Reason: "refresh token rejected", Err: apierr.ErrSessionExpired}
	require.NoError(t, f.store.Set(tokenstore.Tokens{AccessToken: "expired", RefreshToken: "consumed"}))

	_, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/jobs",
		RequiresAuth: true,
	})
	require.True(t, apierr.IsAuthentication(err))
	require.ErrorIs(t, err, apierr.ErrSessionExpired)
	require.Equal(t, 1, calls)
}

func TestForbiddenNeverRefreshesOrMutatesTokens(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)
	stored := tokenstore.Tokens{AccessToken: "abc", RefreshToken: "r"}
	require.NoError(t, f.store.Set(stored))

	_, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodGet,
		Path:         "/admin/users",
		RequiresAuth: true,
	})
	require.True(t, apierr.IsPermission(err))

	refreshes, logouts := f.provider.counts()
	require.Zero(t, refreshes)
	require.Zero(t, logouts)
	require.Equal(t, stored, f.store.Get())
}

func TestAuthEndpointResponsesPassThrough(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods(http.MethodPost)

	f := setup(t, router, 0)
	require.NoError(t, f.store.Set(tokenstore.Tokens{AccessToken: "a", RefreshToken: "r"}))

	resp, err := f.gw.Do(context.Background(), gateway.Request{
		Method:       http.MethodPost,
		Path:         "/auth/refresh",
		AuthEndpoint: true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	refreshes, _ := f.provider.counts()
	require.Zero(t, refreshes, "a 401 from the refresh endpoint must never recurse into refresh")
}

func TestTransientStatusesAreRetried(t *testing.T) {
	var calls int
	router := mux.NewRouter()
	router.HandleFunc("/boundaries", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}).Methods(http.MethodGet)

	f := setup(t, router, 3)

	resp, err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/boundaries"})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, 3, calls)
}

func TestRetriesExhaustedSurfaceHTTPError(t *testing.T) {
	var calls int
	router := mux.NewRouter()
	router.HandleFunc("/boundaries", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}).Methods(http.MethodGet)

	f := setup(t, router, 2)

	_, err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/boundaries"})
	require.True(t, apierr.IsRetryable(err))
	require.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestWritesAreNotRetriedByDefault(t *testing.T) {
	var calls int
	router := mux.NewRouter()
	router.HandleFunc("/imports", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}).Methods(http.MethodPost)

	f := setup(t, router, 3)

	_, err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodPost, Path: "/imports"})
	require.Error(t, err)
	require.Equal(t, 1, calls, "a POST may be applied twice if replayed")

	calls = 0
	_, err = f.gw.Do(context.Background(), gateway.Request{
		Method:             http.MethodPost,
		Path:               "/imports",
		RetryNonIdempotent: true,
	})
	require.Error(t, err)
	require.Equal(t, 4, calls, "opting in enables the full retry budget")
}

func TestUnauthenticatedRequest401DoesNotRefresh(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/tiles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods(http.MethodGet)

	f := setup(t, router, 0)

	_, err := f.gw.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/tiles"})
	var httpErr *apierr.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	refreshes, _ := f.provider.counts()
	require.Zero(t, refreshes)
}
