// Package analysis talks to the tempo-analysis and slicing backend.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Analysis is the backend's tempo and key estimate for an uploaded file.
type Analysis struct {
	Filename           string  `json:"filename"`
	BPM                float64 `json:"bpm"`
	TimeSignature      string  `json:"time_signature"`
	Duration           float64 `json:"duration"`
	Key                string  `json:"key"`
	KickRecommendation string  `json:"kick_recommendation"`
}

// Slice is one measure-aligned segment produced by the backend. Times are in seconds.
type Slice struct {
	Measure   int     `json:"measure"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Filename  string  `json:"filename"`
}

// Duration returns EndTime - StartTime.
func (s Slice) Duration() float64 {
	return s.EndTime - s.StartTime
}

// SliceRequest selects how an analysed upload is cut.
type SliceRequest struct {
	Filename         string
	BPM              float64
	TimeSignature    string
	MeasuresPerSlice float64
	KickOffsetMS     float64
}

// SliceResult lists the slices of one slicing job.
type SliceResult struct {
	JobID  string  `json:"job_id"`
	Slices []Slice `json:"slices"`
}

// KickResult reports a kick extraction run on one slice.
type KickResult struct {
	Success       bool   `json:"success"`
	KicksFilename string `json:"kicks_filename"`
	Message       string `json:"message"`
}

// UpstreamFailure is a non-2xx answer from the backend. The request may be retried.
type UpstreamFailure struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *UpstreamFailure) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
}

// Client is a thin JSON client for the backend. It also serves slice audio to the buffer cache.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// NewClient returns a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Logger:  slog.New(slog.DiscardHandler),
	}
}

// Analyze uploads an audio file and returns the backend's analysis.
func (c *Client) Analyze(ctx context.Context, name string, r io.Reader) (*Analysis, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("analyze: read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Analysis
	if err := c.doJSON(req, "analyze", &out); err != nil {
		return nil, err
	}
	c.Logger.Info("analyzed upload", "file", out.Filename, "bpm", out.BPM, "key", out.Key)
	return &out, nil
}

// Slice asks the backend to cut a previously analysed upload into measure slices.
func (c *Client) Slice(ctx context.Context, sr SliceRequest) (*SliceResult, error) {
	if sr.Filename == "" {
		return nil, fmt.Errorf("slice: filename is required")
	}
	if sr.BPM <= 0 {
		return nil, fmt.Errorf("slice: bpm must be > 0")
	}
	q := url.Values{}
	q.Set("filename", sr.Filename)
	q.Set("bpm", strconv.FormatFloat(sr.BPM, 'f', -1, 64))
	ts := sr.TimeSignature
	if ts == "" {
		ts = "4/4"
	}
	q.Set("time_signature", ts)
	mps := sr.MeasuresPerSlice
	if mps <= 0 {
		mps = 1
	}
	q.Set("measures_per_slice", strconv.FormatFloat(mps, 'f', -1, 64))
	q.Set("kick_offset", strconv.FormatFloat(sr.KickOffsetMS, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/slice?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out SliceResult
	if err := c.doJSON(req, "slice", &out); err != nil {
		return nil, err
	}
	c.Logger.Info("sliced upload", "job", out.JobID, "slices", len(out.Slices))
	return &out, nil
}

// ExtractKicks runs kick extraction on one slice of a job.
func (c *Client) ExtractKicks(ctx context.Context, jobID, filename string, enhancement int) (*KickResult, error) {
	if enhancement < 0 || enhancement > 100 {
		return nil, fmt.Errorf("extract kicks: enhancement must be in [0,100]")
	}
	q := url.Values{}
	q.Set("job_id", jobID)
	q.Set("filename", filename)
	q.Set("enhancement_level", strconv.Itoa(enhancement))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract-kicks?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out KickResult
	if err := c.doJSON(req, "extract kicks", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadURL is where the audio of one slice can be fetched.
func (c *Client) DownloadURL(jobID, filename string) string {
	return c.BaseURL + "/download/" + url.PathEscape(jobID) + "/" + url.PathEscape(filename)
}

// KicksURL is where the extracted kicks of one slice can be fetched.
func (c *Client) KicksURL(jobID, filename string) string {
	return c.BaseURL + "/download-kicks/" + url.PathEscape(jobID) + "/" + url.PathEscape(filename)
}

// Fetch downloads raw bytes from rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamFailure("fetch", resp)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	c.Logger.Debug("fetched", "url", rawURL, "bytes", len(b))
	return b, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamFailure(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func upstreamFailure(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(b))
	var fe struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &fe) == nil && fe.Detail != "" {
		detail = fe.Detail
	}
	return &UpstreamFailure{Op: op, StatusCode: resp.StatusCode, Detail: detail}
}
