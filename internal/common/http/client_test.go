package http

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPClient_Defaults(t *testing.T) {
	client := NewDefaultHTTPClient()

	if client.Timeout != 30*time.Second {
		t.Errorf("expected 30s default timeout, got %v", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("expected transport to be configured")
	}
}

func TestNewHTTPClientWithTimeout(t *testing.T) {
	client := NewHTTPClientWithTimeout(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}
}

type fakeRoundTripper struct{}

func (fakeRoundTripper) RoundTrip(*http.Request) (*http.Response, error) { return nil, nil }

func TestNewHTTPClient_CustomTransport(t *testing.T) {
	rt := fakeRoundTripper{}
	client := NewHTTPClient(WithTransport(rt))

	if client.Transport != rt {
		t.Error("expected custom transport to be used")
	}
}
