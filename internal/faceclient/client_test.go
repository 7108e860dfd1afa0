package faceclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompareSkipMode(t *testing.T) {
	c := New("http://unused", time.Second, true)
	res, err := c.Compare(context.Background(), "", "")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !res.Matched {
		t.Fatal("skip mode must report a match")
	}
}

func TestCompare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compare" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["reference_url"] != "https://img/ref.jpg" || body["probe_b64"] == "" {
			t.Errorf("unexpected request body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"matched":        true,
			"distance":       0.41,
			"threshold":      0.6,
			"faces_detected": 2,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, false)
	res, err := c.Compare(context.Background(), "https://img/ref.jpg", "cHJvYmU=")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !res.Matched || res.Distance != 0.41 || res.Threshold != 0.6 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCompareNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"matched": false, "faces_detected": 0})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, false)
	_, err := c.Compare(context.Background(), "https://img/ref.jpg", "cHJvYmU=")
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestCompareServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, false)
	if _, err := c.Compare(context.Background(), "https://img/ref.jpg", "cHJvYmU="); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestCompareMissingInputs(t *testing.T) {
	c := New("http://unused", time.Second, false)
	if _, err := c.Compare(context.Background(), "", "probe"); err == nil {
		t.Fatal("expected error for missing reference url")
	}
	if _, err := c.Compare(context.Background(), "https://img/ref.jpg", ""); err == nil {
		t.Fatal("expected error for missing probe")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL, time.Second, false).Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := New("http://unused", time.Second, true).Health(context.Background()); err != nil {
		t.Fatalf("health skip: %v", err)
	}
}
