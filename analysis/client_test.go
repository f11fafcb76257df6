package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnalyzeUploadsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if hdr.Filename != "loop.wav" || string(b) != "RIFFDATA" {
			t.Errorf("unexpected upload %q: %q", hdr.Filename, b)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"filename":            "abc.wav",
			"bpm":                 124.0,
			"time_signature":      "4/4",
			"duration":            31.5,
			"key":                 "A minor",
			"kick_recommendation": "A minor",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	a, err := c.Analyze(context.Background(), "loop.wav", strings.NewReader("RIFFDATA"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Filename != "abc.wav" || a.BPM != 124 || a.TimeSignature != "4/4" || a.Key != "A minor" {
		t.Fatalf("unexpected analysis: %+v", a)
	}
}

func TestSliceSendsQueryAndDecodesSlices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/slice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q.Get("filename") != "abc.wav" || q.Get("bpm") != "120" || q.Get("time_signature") != "4/4" ||
			q.Get("measures_per_slice") != "0.5" || q.Get("kick_offset") != "12.5" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{"job_id":"job-1","slices":[
			{"filename":"slice_0.wav","start_time":0,"end_time":1.0,"measure":0},
			{"filename":"slice_1.wav","start_time":1.0,"end_time":2.5,"measure":1}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	res, err := c.Slice(context.Background(), SliceRequest{
		Filename:         "abc.wav",
		BPM:              120,
		MeasuresPerSlice: 0.5,
		KickOffsetMS:     12.5,
	})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if res.JobID != "job-1" || len(res.Slices) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if s := res.Slices[1]; s.Filename != "slice_1.wav" || s.Measure != 1 || s.Duration() != 1.5 {
		t.Fatalf("unexpected slice: %+v", s)
	}
}

func TestSliceValidatesRequest(t *testing.T) {
	c := NewClient("http://unused", nil)
	if _, err := c.Slice(context.Background(), SliceRequest{BPM: 120}); err == nil {
		t.Fatalf("expected error for missing filename")
	}
	if _, err := c.Slice(context.Background(), SliceRequest{Filename: "a.wav"}); err == nil {
		t.Fatalf("expected error for missing bpm")
	}
}

func TestNon2xxBecomesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"File not found"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Slice(context.Background(), SliceRequest{Filename: "missing.wav", BPM: 100})
	var uf *UpstreamFailure
	if !errors.As(err, &uf) {
		t.Fatalf("expected UpstreamFailure, got %v", err)
	}
	if uf.StatusCode != http.StatusNotFound || uf.Detail != "File not found" || uf.Op != "slice" {
		t.Fatalf("unexpected failure: %+v", uf)
	}

	_, err = c.Fetch(context.Background(), c.DownloadURL("job", "slice_0.wav"))
	if !errors.As(err, &uf) || uf.Op != "fetch" {
		t.Fatalf("expected fetch UpstreamFailure, got %v", err)
	}
}

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/job 1/slice_0.wav" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte{1, 2, 3})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	b, err := c.Fetch(context.Background(), c.DownloadURL("job 1", "slice_0.wav"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(b) != 3 || b[2] != 3 {
		t.Fatalf("unexpected body %v", b)
	}
}

func TestExtractKicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("job_id") != "j" || q.Get("filename") != "slice_2.wav" || q.Get("enhancement_level") != "70" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{"success":true,"kicks_filename":"slice_2_kicks.wav","message":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	res, err := c.ExtractKicks(context.Background(), "j", "slice_2.wav", 70)
	if err != nil {
		t.Fatalf("ExtractKicks failed: %v", err)
	}
	if !res.Success || res.KicksFilename != "slice_2_kicks.wav" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := c.ExtractKicks(context.Background(), "j", "x.wav", 101); err == nil {
		t.Fatalf("expected range error")
	}
}
