package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClient_SendOK(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("response-audio"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key123", 5*time.Second)
	resp, err := c.Send(context.Background(), []byte("utterance"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(resp) != "response-audio" {
		t.Fatalf("unexpected response %q", resp)
	}
	if gotAuth != "Bearer key123" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotType != "audio/wav" {
		t.Fatalf("expected audio/wav content type, got %q", gotType)
	}
	if string(gotBody) != "utterance" {
		t.Fatalf("payload not delivered, got %q", gotBody)
	}
}

func TestHTTPClient_RemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	if _, err := c.Send(context.Background(), []byte("x")); !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("expected ErrRemoteRejected, got %v", err)
	}
}

func TestHTTPClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	if _, err := c.Send(context.Background(), []byte("x")); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestHTTPClient_TransportUnavailable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", 500*time.Millisecond)
	if _, err := c.Send(context.Background(), []byte("x")); !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}
}
