package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"pressline/internal/cache"
	"pressline/internal/config"
	"pressline/internal/services"
	"pressline/internal/services/publisher"
)

func testPublisherConfig(url string) config.Publisher {
	return config.Publisher{
		BaseURL:        url,
		Username:       "writer",
		AppPassword:    "secret",
		Status:         "publish",
		TimeoutSeconds: 5,
	}
}

func testPost() publisher.Post {
	return publisher.Post{
		Title: "A Post",
		HTML:  "<p>Body</p>",
	}
}

func TestPublishCreatesPost(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fmt.Fprint(w, `{"id":321}`)
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	postID, err := client.Publish(context.Background(), testPost(), "")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if postID != "321" {
		t.Fatalf("expected post id 321, got %q", postID)
	}
	if gotPath != "/wp-json/wp/v2/posts" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotUser != "writer" || gotPass != "secret" {
		t.Fatalf("unexpected credentials %q/%q", gotUser, gotPass)
	}
	if gotPayload["title"] != "A Post" || gotPayload["status"] != "publish" {
		t.Fatalf("unexpected payload: %#v", gotPayload)
	}
}

func TestPublishUpdatesExistingPost(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":777}`)
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	postID, err := client.Publish(context.Background(), testPost(), "777")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if postID != "777" {
		t.Fatalf("expected post id 777, got %q", postID)
	}
	if gotPath != "/wp-json/wp/v2/posts/777" {
		t.Fatalf("expected update path, got %q", gotPath)
	}
}

func TestPublishResolvesAndCreatesTerms(t *testing.T) {
	var created []string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/categories") && r.Method == http.MethodGet:
			fmt.Fprint(w, `[{"id":7,"name":"Guides"}]`)
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/tags") && r.Method == http.MethodGet:
			fmt.Fprint(w, `[]`)
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/tags") && r.Method == http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			created = append(created, body["name"].(string))
			fmt.Fprint(w, `{"id":41}`)
		case r.URL.Path == "/wp-json/wp/v2/posts":
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
			fmt.Fprint(w, `{"id":5}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	post := testPost()
	post.Categories = []string{"Guides"}
	post.Tags = []string{"coffee"}
	if _, err := client.Publish(context.Background(), post, ""); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(created) != 1 || created[0] != "coffee" {
		t.Fatalf("expected tag created, got %#v", created)
	}
	categories, ok := gotPayload["categories"].([]any)
	if !ok || len(categories) != 1 || categories[0].(float64) != 7 {
		t.Fatalf("expected category id 7, got %#v", gotPayload["categories"])
	}
	tags, ok := gotPayload["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0].(float64) != 41 {
		t.Fatalf("expected tag id 41, got %#v", gotPayload["tags"])
	}
}

func TestPublishSideloadsFeaturedImage(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer imageServer.Close()

	var gotDisposition string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/wp-json/wp/v2/media" && r.Method == http.MethodPost:
			gotDisposition = r.Header.Get("Content-Disposition")
			fmt.Fprint(w, `{"id":88}`)
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/media/"):
			fmt.Fprint(w, `{"id":88}`)
		case r.URL.Path == "/wp-json/wp/v2/posts":
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
			fmt.Fprint(w, `{"id":5}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	post := testPost()
	post.Media = cache.MediaReference{
		ImageURL:    imageServer.URL + "/photo.jpg",
		ImageCredit: "Robin Lens",
	}
	if _, err := client.Publish(context.Background(), post, ""); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if !strings.Contains(gotDisposition, "photo.jpg") {
		t.Fatalf("expected filename in disposition, got %q", gotDisposition)
	}
	if featured, ok := gotPayload["featured_media"].(float64); !ok || featured != 88 {
		t.Fatalf("expected featured_media 88, got %#v", gotPayload["featured_media"])
	}
}

func TestPublishFailsWhenTermResolutionFails(t *testing.T) {
	var postCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/categories") {
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/wp-json/wp/v2/posts" {
			postCalls.Add(1)
			fmt.Fprint(w, `{"id":9}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	post := testPost()
	post.Categories = []string{"Guides"}
	_, err := client.Publish(context.Background(), post, "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error from term lookup, got %v", err)
	}
	if postCalls.Load() != 0 {
		t.Fatal("post must not be created while its terms are unresolved")
	}
}

func TestPublishConcurrentWorkersShareOneClient(t *testing.T) {
	var termLookups, posts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/categories") && r.Method == http.MethodGet:
			termLookups.Add(1)
			fmt.Fprint(w, `[{"id":7,"name":"Guides"}]`)
		case r.URL.Path == "/wp-json/wp/v2/posts":
			fmt.Fprintf(w, `{"id":%d}`, 100+posts.Add(1))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL),
		publisher.WithHTTPClient(server.Client()))

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			post := testPost()
			post.Categories = []string{"Guides"}
			_, errs[i] = client.Publish(context.Background(), post, "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: Publish failed: %v", i, err)
		}
	}
	if posts.Load() != workers {
		t.Fatalf("expected %d posts, got %d", workers, posts.Load())
	}
	if termLookups.Load() > workers {
		t.Fatalf("term memo not consulted: %d lookups for %d posts", termLookups.Load(), workers)
	}
}

func TestPublishClassifiesAuthFailureAsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	_, err := client.Publish(context.Background(), testPost(), "")
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestPublishClassifiesServerErrorAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := publisher.NewClient(testPublisherConfig(server.URL))
	_, err := client.Publish(context.Background(), testPost(), "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
