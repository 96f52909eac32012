package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

func TestCallbackRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		router := NewCallbackRouter()
		router.Get(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}), "/ping", "/pong")

		for _, path := range []string{"/ping", "/pong"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != "pong" {
				t.Errorf("%s: expected pong, got %q", path, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != "GET, HEAD" {
			t.Errorf("expected Allow header, got %q", rec.Header().Get("Allow"))
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewCallbackRouter()
		router.Use(mw("first"), mw("second"))
		router.Get(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), "/")
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf strings.Builder
		logger := log.New(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewCallbackRouter()
		router.Use(Logging(logger))
		router.Get(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}), "/x")
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if !strings.Contains(buf.String(), "418") {
			t.Errorf("expected status in log output, got %q", buf.String())
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ex := &fakeExchanger{token: &oauth2.Token{AccessToken: "abc"}}
		h := NewOAuthHandler(context.Background(), ex, "state1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state1&code=c1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error %v", result.Error())
		}
		if result.Token.AccessToken != "abc" {
			t.Errorf("unexpected token %v", result.Token)
		}
		if len(ex.codes) != 1 || ex.codes[0] != "c1" {
			t.Errorf("unexpected exchanged codes %v", ex.codes)
		}
	})

	t.Run("Invalid State", func(t *testing.T) {
		h := NewOAuthHandler(nil, &fakeExchanger{}, "expected")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=c", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("Denied", func(t *testing.T) {
		h := NewOAuthHandler(nil, &fakeExchanger{}, "s")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		h := NewOAuthHandler(nil, &fakeExchanger{err: errors.New("boom")}, "s")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		h := NewOAuthHandler(nil, &fakeExchanger{token: &oauth2.Token{AccessToken: "a"}}, "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServeCallback(t *testing.T) {
	t.Run("Receives Token", func(t *testing.T) {
		addr := freeAddr(t)
		h := NewOAuthHandler(nil, &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}}, "st")

		ready := func() error {
			go func() {
				resp, err := http.Get(fmt.Sprintf("http://%s/callback?state=st&code=c", addr))
				if err == nil {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
			}()
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		token, err := ServeCallback(ctx, addr, h, nil, ready)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if token.AccessToken != "tok" {
			t.Errorf("unexpected token %v", token)
		}
	})

	t.Run("Callback Is GET Only", func(t *testing.T) {
		addr := freeAddr(t)
		h := NewOAuthHandler(nil, &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}}, "st")

		status := make(chan int, 1)
		ready := func() error {
			go func() {
				resp, err := http.Post(fmt.Sprintf("http://%s/callback?state=st&code=c", addr), "text/plain", nil)
				if err != nil {
					status <- 0
					return
				}
				resp.Body.Close()
				status <- resp.StatusCode
			}()
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if _, err := ServeCallback(ctx, addr, h, nil, ready); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if got := <-status; got != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for POST callback, got %d", got)
		}
	})

	t.Run("Context Cancelled", func(t *testing.T) {
		addr := freeAddr(t)
		h := NewOAuthHandler(nil, &fakeExchanger{}, "st")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := ServeCallback(ctx, addr, h, nil, func() error { return errors.New("no browser") })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
