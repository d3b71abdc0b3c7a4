package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Cell Biology Basics &amp; More</title>
<style>body { color: red; }</style>
<script>var tracking = true;</script>
</head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<article>
<h1>Cell Biology Basics</h1>
<p>The cell is the basic unit of life.</p>
<p>Mitochondria produce ATP through respiration.</p>
</article>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestStripArticleHTML(t *testing.T) {
	got := stripArticleHTML(samplePage)

	if !strings.Contains(got, "The cell is the basic unit of life.") {
		t.Fatalf("body text missing: %q", got)
	}
	if strings.Contains(got, "tracking") {
		t.Fatalf("script content survived: %q", got)
	}
	if strings.Contains(got, "color: red") {
		t.Fatalf("style content survived: %q", got)
	}
	if strings.Contains(got, "Home") {
		t.Fatalf("nav content survived: %q", got)
	}
	if strings.Contains(got, "Copyright") {
		t.Fatalf("footer content survived: %q", got)
	}
}

func TestFetchArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := NewScraperService()
	title, text, err := s.FetchArticle(srv.URL)
	if err != nil {
		t.Fatalf("FetchArticle: %v", err)
	}

	if title != "Cell Biology Basics & More" {
		t.Fatalf("unexpected title: %q", title)
	}
	if !strings.Contains(text, "Mitochondria produce ATP") {
		t.Fatalf("article text missing: %q", text)
	}
}

func TestFetchArticle_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	s := NewScraperService()
	if _, _, err := s.FetchArticle(srv.URL); err == nil {
		t.Fatalf("expected error for non-HTML content type")
	}
}

func TestFetchArticle_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewScraperService()
	if _, _, err := s.FetchArticle(srv.URL); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}
