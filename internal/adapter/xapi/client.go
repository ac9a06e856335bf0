// Package xapi publishes posts to X (Twitter): OAuth 1.0a signed media
// upload (simple or chunked) against the v1.1 upload endpoint, and post
// creation against the v2 endpoint.
package xapi

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
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	defaultPostURL   = "https://api.twitter.com/2/tweets"

	// ChunkThreshold is the file size above which the chunked upload flow
	// is used instead of a single multipart request.
	ChunkThreshold = 5 * 1024 * 1024

	// chunkSize is the APPEND segment size in the chunked flow.
	chunkSize = 4 * 1024 * 1024

	mediaTypeGIF     = "image/gif"
	mediaCategoryGIF = "tweet_gif"
)

// Credentials are the four OAuth 1.0a user-context secrets.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Client posts to X on behalf of one account.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	uploadURL string
	postURL   string

	// statusPollInterval paces FINALIZE processing polls; shortened in tests.
	statusPollInterval time.Duration
}

// NewClient builds a client whose transport signs every request with OAuth 1.0a.
func NewClient(creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	oaConfig := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	oaToken := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := oaConfig.Client(oauth1.NoContext, oaToken)
	httpClient.Timeout = timeout

	return &Client{
		httpClient:         httpClient,
		logger:             logger,
		uploadURL:          defaultUploadURL,
		postURL:            defaultPostURL,
		statusPollInterval: 2 * time.Second,
	}
}

// Publish uploads the media file (when mediaPath is non-empty) and creates
// one post with the given text. It returns the created post id.
func (c *Client) Publish(ctx context.Context, text, mediaPath string) (string, error) {
	var mediaIDs []string
	if mediaPath != "" {
		id, err := c.UploadMedia(ctx, mediaPath)
		if err != nil {
			return "", err
		}
		mediaIDs = append(mediaIDs, id)
	}
	return c.CreatePost(ctx, text, mediaIDs)
}

// UploadMedia uploads a GIF and returns its media id. Files above
// ChunkThreshold go through the chunked INIT/APPEND/FINALIZE flow.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat media file: %w", err)
	}

	if info.Size() > ChunkThreshold {
		c.logger.Info("uploading media (chunked)", "path", path, "bytes", info.Size())
		return c.uploadChunked(ctx, path, info.Size())
	}
	c.logger.Info("uploading media", "path", path, "bytes", info.Size())
	return c.uploadSimple(ctx, path)
}

// CreatePost creates a post with optional attached media ids and returns the
// post id.
func (c *Client) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload := createPostRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &postMedia{MediaIDs: mediaIDs}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("post create: status %d: %s", resp.StatusCode, body)
	}

	var pr createPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("decode post response: %w", err)
	}
	c.logger.Info("post published", "post_id", pr.Data.ID)
	return pr.Data.ID, nil
}

func (c *Client) uploadSimple(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("media_category", mediaCategoryGIF); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	part, err := mw.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read media file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	resp, err := c.uploadRequest(ctx, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	return resp.MediaIDString, nil
}

func (c *Client) uploadChunked(ctx context.Context, path string, size int64) (string, error) {
	mediaID, err := c.chunkInit(ctx, size)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	segment := 0
	chunk := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(f, chunk)
		if n > 0 {
			if err := c.chunkAppend(ctx, mediaID, segment, chunk[:n]); err != nil {
				return "", err
			}
			segment++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read media file: %w", readErr)
		}
	}

	return c.chunkFinalize(ctx, mediaID)
}

func (c *Client) chunkInit(ctx context.Context, size int64) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(size, 10)},
		"media_type":     {mediaTypeGIF},
		"media_category": {mediaCategoryGIF},
	}
	resp, err := c.uploadForm(ctx, form)
	if err != nil {
		return "", fmt.Errorf("upload INIT: %w", err)
	}
	return resp.MediaIDString, nil
}

func (c *Client) chunkAppend(ctx context.Context, mediaID string, segment int, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"command":       "APPEND",
		"media_id":      mediaID,
		"segment_index": strconv.Itoa(segment),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("upload APPEND: %w", err)
		}
	}
	part, err := mw.CreateFormFile("media", "media")
	if err != nil {
		return fmt.Errorf("upload APPEND: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("upload APPEND: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload APPEND: %w", err)
	}

	if _, err := c.uploadRequest(ctx, &buf, mw.FormDataContentType()); err != nil {
		return fmt.Errorf("upload APPEND segment %d: %w", segment, err)
	}
	return nil
}

func (c *Client) chunkFinalize(ctx context.Context, mediaID string) (string, error) {
	form := url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}
	resp, err := c.uploadForm(ctx, form)
	if err != nil {
		return "", fmt.Errorf("upload FINALIZE: %w", err)
	}

	// Async processing: poll STATUS until the platform reports a terminal state.
	for resp.ProcessingInfo != nil && resp.ProcessingInfo.State != "succeeded" {
		if resp.ProcessingInfo.State == "failed" {
			return "", fmt.Errorf("media processing failed for %s", mediaID)
		}
		wait := c.statusPollInterval
		if s := resp.ProcessingInfo.CheckAfterSecs; s > 0 {
			wait = time.Duration(s) * time.Second
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}

		resp, err = c.uploadStatus(ctx, mediaID)
		if err != nil {
			return "", err
		}
	}
	return mediaID, nil
}

func (c *Client) uploadStatus(ctx context.Context, mediaID string) (*uploadResponse, error) {
	params := url.Values{
		"command":  {"STATUS"},
		"media_id": {mediaID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uploadURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("upload STATUS: %w", err)
	}
	return c.doUpload(req)
}

func (c *Client) uploadForm(ctx context.Context, form url.Values) (*uploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doUpload(req)
}

func (c *Client) uploadRequest(ctx context.Context, body io.Reader, contentType string) (*uploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.doUpload(req)
}

func (c *Client) doUpload(req *http.Request) (*uploadResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("media upload: status %d: %s", resp.StatusCode, body)
	}

	// APPEND returns 204 with no body.
	if resp.StatusCode == http.StatusNoContent {
		return &uploadResponse{}, nil
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &ur, nil
}

// X API request/response types.

type uploadResponse struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State          string `json:"state"`
		CheckAfterSecs int    `json:"check_after_secs"`
	} `json:"processing_info"`
}

type createPostRequest struct {
	Text  string     `json:"text"`
	Media *postMedia `json:"media,omitempty"`
}

type postMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}
