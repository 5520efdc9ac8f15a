package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is a client for the object-detection model service.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	names map[int]string
}

// DetectRequest asks the model to run on a file visible to the service.
type DetectRequest struct {
	ImagePath string `json:"image_path"`
}

// RawDetection is one box as reported by the model.
type RawDetection struct {
	ClassID    int       `json:"class_id"`
	ClassName  string    `json:"class_name,omitempty"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// DetectResponse represents the inference result for one image.
type DetectResponse struct {
	Detections       []RawDetection `json:"detections"`
	ProcessingTimeMs float64        `json:"processing_time_ms,omitempty"`
}

// ModelInfo represents model information.
type ModelInfo struct {
	Model  string            `json:"model"`
	Device string            `json:"device,omitempty"`
	Names  map[string]string `json:"names"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
	Message     string `json:"message"`
}

// NewClient creates a new detection service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		names: make(map[int]string),
	}
}

// Infer runs the model on one image.
func (c *Client) Infer(ctx context.Context, imagePath string) ([]RawDetection, error) {
	jsonData, err := json.Marshal(DetectRequest{ImagePath: imagePath})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/detect", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result DetectResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Detections, nil
}

// LoadClasses fetches the model's class-name table and caches it.
func (c *Client) LoadClasses(ctx context.Context) (*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/model/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var info ModelInfo
	if err := c.do(req, &info); err != nil {
		return nil, err
	}

	names := make(map[int]string, len(info.Names))
	for k, v := range info.Names {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q in model info: %w", k, err)
		}
		names[id] = v
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return &info, nil
}

// ClassName maps a class id to its label. Unknown ids map to "class_<id>".
func (c *Client) ClassName(id int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.names[id]; ok {
		return name
	}
	return "class_" + strconv.Itoa(id)
}

// HealthCheck checks if the detection service is healthy.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result HealthResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
