package media_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pressline/internal/config"
	"pressline/internal/services"
	"pressline/internal/services/media"
)

func imageSearchBody() string {
	return `{"results":[
        {"width":800,"height":600,"urls":{"regular":"https://img.example/small.jpg"},"user":{"name":"Too Small"}},
        {"width":1920,"height":1080,"urls":{"regular":"https://img.example/large.jpg"},"user":{"name":"Robin Lens"}}
    ]}`
}

func testMediaConfig(imageURL, videoURL string) config.Media {
	cfg := config.Media{
		ImageAPIKey:     "image-key",
		ImageBaseURL:    imageURL,
		MinWidth:        1200,
		MinHeight:       800,
		TimeoutSeconds:  5,
		CacheTTLMinutes: 10,
	}
	if videoURL != "" {
		cfg.VideoAPIKey = "video-key"
		cfg.VideoBaseURL = videoURL
	}
	return cfg
}

func TestResolvePicksImageMeetingMinimumDimensions(t *testing.T) {
	var gotAuth, gotOrientation string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrientation = r.URL.Query().Get("orientation")
		fmt.Fprint(w, imageSearchBody())
	}))
	defer server.Close()

	client := media.NewClient(testMediaConfig(server.URL, ""), media.WithHTTPClient(server.Client()))
	ref, err := client.Resolve(context.Background(), "Coffee Brewing", "Drinks")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if gotAuth != "Client-ID image-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotOrientation != "landscape" {
		t.Fatalf("expected landscape orientation, got %q", gotOrientation)
	}
	if ref.ImageURL != "https://img.example/large.jpg" {
		t.Fatalf("expected the large image, got %q", ref.ImageURL)
	}
	if ref.ImageCredit != "Robin Lens" {
		t.Fatalf("expected attribution, got %q", ref.ImageCredit)
	}
}

func TestResolveFailsWhenNoImageIsLargeEnough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"width":640,"height":480,"urls":{"regular":"https://img.example/tiny.jpg"},"user":{"name":"A"}}]}`)
	}))
	defer server.Close()

	client := media.NewClient(testMediaConfig(server.URL, ""))
	_, err := client.Resolve(context.Background(), "Coffee", "")
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestResolveMemoizesSearchResults(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, imageSearchBody())
	}))
	defer server.Close()

	client := media.NewClient(testMediaConfig(server.URL, ""))
	for i := 0; i < 3; i++ {
		if _, err := client.Resolve(context.Background(), "Coffee", ""); err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
}

func TestResolveIncludesVideoEmbed(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, imageSearchBody())
	}))
	defer imageServer.Close()
	videoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":{"videoId":"abc123"}}]}`)
	}))
	defer videoServer.Close()

	client := media.NewClient(testMediaConfig(imageServer.URL, videoServer.URL))
	ref, err := client.Resolve(context.Background(), "Coffee", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.VideoRef != "https://www.youtube.com/embed/abc123" {
		t.Fatalf("unexpected video ref %q", ref.VideoRef)
	}
}

func TestResolveVideoFailureIsSwallowed(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, imageSearchBody())
	}))
	defer imageServer.Close()
	videoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer videoServer.Close()

	client := media.NewClient(testMediaConfig(imageServer.URL, videoServer.URL))
	ref, err := client.Resolve(context.Background(), "Coffee", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ref.ImageURL == "" {
		t.Fatal("expected image despite video failure")
	}
	if ref.VideoRef != "" {
		t.Fatalf("expected no video ref, got %q", ref.VideoRef)
	}
}

func TestResolveWithoutImageKeyReturnsZeroReference(t *testing.T) {
	cfg := testMediaConfig("http://127.0.0.1:0", "")
	cfg.ImageAPIKey = ""
	client := media.NewClient(cfg)

	ref, err := client.Resolve(context.Background(), "Coffee", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ref.IsZero() {
		t.Fatalf("expected zero reference, got %#v", ref)
	}
}

func TestResolveClassifiesServerErrorAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := media.NewClient(testMediaConfig(server.URL, ""))
	_, err := client.Resolve(context.Background(), "Coffee", "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
