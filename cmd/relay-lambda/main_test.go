package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func event(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		Headers: map[string]string{"content-type": "application/json"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "relay.example.com",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.9",
			},
		},
	}
}

type recordingHandler struct {
	method string
	path   string
	host   string
	body   string
	ctype  string
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	h.method = r.Method
	h.path = r.URL.RequestURI()
	h.host = r.Host
	h.body = string(raw)
	h.ctype = r.Header.Get("Content-Type")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("OK"))
}

func TestHandleForwardsRequest(t *testing.T) {
	h := &recordingHandler{}
	evt := event(http.MethodPost, "/", `{"update_id":1}`)
	evt.RawQueryString = "a=b"

	resp, err := handle(context.Background(), h, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if resp.Body != "OK" {
		t.Fatalf("expected OK body, got %q", resp.Body)
	}
	if resp.Headers["content-type"] != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content-type %q", resp.Headers["content-type"])
	}
	if h.method != http.MethodPost || h.path != "/?a=b" {
		t.Fatalf("unexpected request line %s %s", h.method, h.path)
	}
	if h.body != `{"update_id":1}` {
		t.Fatalf("unexpected body %q", h.body)
	}
	if h.host != "relay.example.com" {
		t.Fatalf("unexpected host %q", h.host)
	}
	if h.ctype != "application/json" {
		t.Fatalf("unexpected content type %q", h.ctype)
	}
}

func TestHandleDecodesBase64Body(t *testing.T) {
	h := &recordingHandler{}
	evt := event(http.MethodPost, "/", base64.StdEncoding.EncodeToString([]byte(`{"update_id":2}`)))
	evt.IsBase64Encoded = true

	if _, err := handle(context.Background(), h, evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.body != `{"update_id":2}` {
		t.Fatalf("expected decoded body, got %q", h.body)
	}
}

func TestHandleBadBase64IsProcessingError(t *testing.T) {
	evt := event(http.MethodPost, "/", "%%%")
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), &recordingHandler{}, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}
	if resp.Body != "Error processing update" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHandleDefaultsPathAndStatus(t *testing.T) {
	evt := event(http.MethodGet, "", "")
	evt.RequestContext.HTTP.Path = ""

	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("Telegram Bot is running!"))
	})

	resp, err := handle(context.Background(), handler, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/" {
		t.Fatalf("expected root path, got %q", gotPath)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Body != "Telegram Bot is running!" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}
