// Package oracle talks to the external face embedding server: images go in, one
// embedding per detected face comes out.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	faceEndpoint        = "/embed/face"
	// maxErrorBody bounds how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// Encoder turns an image into one embedding per detected face.
// An image without faces yields an empty slice and no error.
type Encoder interface {
	DetectAndEncode(ctx context.Context, image []byte) ([]facematch.Embedding, error)
}

// ErrNoFace is returned by FirstFace when the image contains no detectable face.
var ErrNoFace = errors.New("no face found in image")

// FirstFace returns the embedding of the first face detected in image.
func FirstFace(ctx context.Context, enc Encoder, image []byte) (facematch.Embedding, error) {
	faces, err := enc.DetectAndEncode(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}
	return faces[0], nil
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithMaxImageSize downscales images whose width or height exceeds size before upload.
// Zero disables downscaling.
func WithMaxImageSize(size int) Option {
	return func(c *Client) {
		c.maxImageSize = size
	}
}

// WithTimeout bounds every request to the embedding server.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a new embedding server client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectAndEncode returns the embeddings of every face found in image, in detection order.
func (c *Client) DetectAndEncode(ctx context.Context, image []byte) ([]facematch.Embedding, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, image)
	if err != nil {
		return nil, err
	}
	out := make([]facematch.Embedding, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		out = append(out, facematch.Embedding(f.Embedding))
	}
	return out, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings.
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, image []byte) (*FaceResponse, error) {
	if len(image) == 0 {
		return nil, goerr.Wrap(facematch.ErrInvalidInput, "image is empty")
	}
	if c.maxImageSize > 0 {
		resized, err := ResizeImage(image, c.maxImageSize)
		if err != nil {
			return nil, goerr.Wrap(facematch.ErrInvalidInput, "preparing image", goerr.V("cause", err.Error()))
		}
		image = resized
	}

	body, err := c.postMultipartImage(ctx, faceEndpoint, image)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, goerr.Wrap(facematch.ErrOracleFailure, "failed to parse response", goerr.V("cause", err.Error()))
	}
	for i, f := range faceResp.Faces {
		if len(f.Embedding) == 0 {
			return nil, goerr.Wrap(facematch.ErrOracleFailure, "empty embedding returned", goerr.V("face", i))
		}
	}
	return &faceResp, nil
}

// postMultipartImage posts the image as the multipart "file" field and returns the response body.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(facematch.ErrOracleFailure, "request failed",
			goerr.V("url", c.baseURL+endpoint), goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(facematch.ErrOracleFailure, "failed to read response", goerr.V("cause", err.Error()))
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, goerr.Wrap(facematch.ErrOracleFailure, "API error",
			goerr.V("status", resp.StatusCode), goerr.V("body", msg))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

var _ Encoder = (*Client)(nil)
