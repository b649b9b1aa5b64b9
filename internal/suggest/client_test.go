package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

// service fakes the name-suggestion service. handler decides the reply per
// call; calls counts requests.
func service(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func answer(names ...string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{Ans: names})
	}
}

func TestSuggest_ReturnsFirstAnswer(t *testing.T) {
	// Given: a service answering two names
	var gotName string
	srv, _ := service(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findname", r.URL.Path)
		gotName = r.URL.Query().Get("name")
		answer("Faust", "Faust 2")(w, r)
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	// When: suggesting
	got, err := c.Suggest(context.Background(), "浮士德 game")

	// Then: the first answer is returned and the query was URL-encoded intact
	require.NoError(t, err)
	assert.Equal(t, "Faust", got)
	assert.Equal(t, "浮士德 game", gotName)
}

func TestSuggest_EmptyQuerySkipsNetwork(t *testing.T) {
	srv, calls := service(t, answer("x"))
	c, err := New(srv.URL)
	require.NoError(t, err)

	got, err := c.Suggest(context.Background(), "   ")

	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSuggest_CachesAnswers(t *testing.T) {
	srv, calls := service(t, answer("Faust"))
	c, err := New(srv.URL)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := c.Suggest(context.Background(), "faust")
		require.NoError(t, err)
		assert.Equal(t, "Faust", got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSuggest_NoAnswer(t *testing.T) {
	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request)
	}{
		{"empty list", answer()},
		{"404 with empty list", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ans": []}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := service(t, tt.handler)
			c, err := New(srv.URL, WithCircuitBreaker(1, time.Minute))
			require.NoError(t, err)

			got, err := c.Suggest(context.Background(), "nothing")

			assert.ErrorIs(t, err, ErrNoSuggestion)
			assert.Equal(t, "", got)
			assert.Equal(t, apperrors.StateClosed, c.BreakerState())
		})
	}
}

func TestSuggest_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request)
		code    string
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, apperrors.ErrCodeSuggestUnavailable},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}, apperrors.ErrCodeSuggestBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := service(t, tt.handler)
			c, err := New(srv.URL)
			require.NoError(t, err)

			got, err := c.Suggest(context.Background(), "q")

			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.Equal(t, "", got)
		})
	}
}

func TestSuggest_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := service(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Suggest(context.Background(), "slow")

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSuggest_CallerCancelDoesNotTripBreaker(t *testing.T) {
	// Given: a healthy but slow service and a breaker that opens on one failure
	srv, _ := service(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
			answer("Faust")(w, r)
		case <-r.Context().Done():
		}
	})
	c, err := New(srv.URL, WithCircuitBreaker(1, time.Minute))
	require.NoError(t, err)

	// When: callers abandon their lookups
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err = c.Suggest(ctx, "slow")
		cancel()

		// Then: each sees its own context error and the breaker stays closed
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, apperrors.GetCode(err))
	}
	assert.Equal(t, apperrors.StateClosed, c.BreakerState())
}

func TestSuggest_LookupTimeoutTripsBreaker(t *testing.T) {
	// Given: a service slower than the client's own lookup timeout
	srv, _ := service(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c, err := New(srv.URL, WithTimeout(20*time.Millisecond), WithCircuitBreaker(1, time.Minute))
	require.NoError(t, err)

	// When: the lookup times out with the caller still waiting
	_, err = c.Suggest(context.Background(), "slow")

	// Then: the timeout counts against the service
	assert.Equal(t, apperrors.ErrCodeSuggestUnavailable, apperrors.GetCode(err))
	assert.Equal(t, apperrors.StateOpen, c.BreakerState())
}

func TestSuggest_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := New(url)
	require.NoError(t, err)

	_, err = c.Suggest(context.Background(), "q")

	assert.Equal(t, apperrors.ErrCodeSuggestUnavailable, apperrors.GetCode(err))
}

func TestSuggest_BreakerFailsFast(t *testing.T) {
	// Given: a broken service and a breaker that opens after two failures
	srv, calls := service(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	c, err := New(srv.URL, WithCircuitBreaker(2, time.Minute))
	require.NoError(t, err)

	// When: looking up repeatedly
	for i := 0; i < 5; i++ {
		_, _ = c.Suggest(context.Background(), "q")
	}

	// Then: only the first two reached the service
	assert.Equal(t, int32(2), calls.Load())
	_, err = c.Suggest(context.Background(), "q")
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
}

func TestSuggest_RetriesTransientFailures(t *testing.T) {
	// Given: a service that fails once, then answers
	var attempts atomic.Int32
	srv, _ := service(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		answer("Faust")(w, r)
	})
	c, err := New(srv.URL, WithRetries(2))
	require.NoError(t, err)

	// When: suggesting
	got, err := c.Suggest(context.Background(), "faust")

	// Then: the retry recovers the answer
	require.NoError(t, err)
	assert.Equal(t, "Faust", got)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNew_RejectsBadEndpoint(t *testing.T) {
	_, err := New("localhost:2998")

	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
}
