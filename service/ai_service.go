package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"

	"github.com/google/generative-ai-go/genai"
)

const (
	defaultEmbeddingAPI  = "https://generativelanguage.googleapis.com/v1beta/models/gemini-embedding-001:embedContent"
	defaultGenerationAPI = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"

	truncationMarker = "..."
)

var (
	ErrEmbeddingFailed  = errors.New("failed to generate embedding")
	ErrGenerationFailed = errors.New("failed to generate content")
)

// AIService wraps the Embedding Service and Language Model collaborators.
// All calls are bounded by timeout and a fixed retry budget with backoff;
// model output is treated as untrusted and parse-validated per call site.
type AIService struct {
	cfg           Config
	apiKey        string
	embeddingAPI  string
	generationAPI string
	embedClient   *http.Client
	llmClient     *http.Client
	genaiClient   *genai.Client
}

// AIServiceOption is a functional option for AIService
type AIServiceOption func(*AIService)

// WithEmbeddingEndpoint overrides the embedding API endpoint
func WithEmbeddingEndpoint(url string) AIServiceOption {
	return func(s *AIService) {
		s.embeddingAPI = url
	}
}

// WithGenerationEndpoint overrides the generation API endpoint
func WithGenerationEndpoint(url string) AIServiceOption {
	return func(s *AIService) {
		s.generationAPI = url
	}
}

// WithGenaiClient sets the SDK client used as the primary embedding path;
// when unset, or when the SDK result does not match the configured
// dimension, the HTTP API is used instead
func WithGenaiClient(client *genai.Client) AIServiceOption {
	return func(s *AIService) {
		s.genaiClient = client
	}
}

// NewAIService creates a new AI collaborator client
func NewAIService(cfg Config, apiKey string, opts ...AIServiceOption) *AIService {
	s := &AIService{
		cfg:           cfg,
		apiKey:        apiKey,
		embeddingAPI:  defaultEmbeddingAPI,
		generationAPI: defaultGenerationAPI,
		embedClient:   &http.Client{Timeout: cfg.RequestTimeout},
		llmClient:     &http.Client{Timeout: cfg.LLMTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeText collapses whitespace, strips control characters, and
// truncates to the configured bound with a marker appended
func (s *AIService) NormalizeText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > s.cfg.MaxTextLength {
		cleaned = string(runes[:s.cfg.MaxTextLength]) + truncationMarker
	}
	return cleaned
}

// embeddingRequest is the Gemini embedContent request body
type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// GenerateEmbedding normalizes the text and requests a fixed-dimension
// vector from the embedding collaborator
func (s *AIService) GenerateEmbedding(ctx context.Context, text string) (models.Vector, error) {
	normalized := s.NormalizeText(text)

	if s.genaiClient != nil {
		if v, err := s.embedWithSDK(ctx, normalized); err == nil {
			return v, nil
		} else {
			log.Printf("Warning: SDK embedding failed, falling back to HTTP API: %v", err)
		}
	}

	reqBody := embeddingRequest{
		Model: "models/gemini-embedding-001",
		Content: contentInput{
			Parts: []partInput{{Text: normalized}},
		},
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: s.cfg.EmbeddingDim,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &DependencyError{Collaborator: "embedding", Err: err}
	}

	backoff := s.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", s.embeddingAPI, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, &DependencyError{Collaborator: "embedding", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", s.apiKey)

		resp, err := s.embedClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			err := json.NewDecoder(resp.Body).Decode(&apiResp)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			if len(apiResp.Embedding.Values) != s.cfg.EmbeddingDim {
				lastErr = fmt.Errorf("expected %d-dimension embedding, got %d", s.cfg.EmbeddingDim, len(apiResp.Embedding.Values))
				continue
			}
			return normalizeVector(apiResp.Embedding.Values), nil
		}

		resp.Body.Close()

		// Client errors will not improve on retry
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, &DependencyError{Collaborator: "embedding", Err: fmt.Errorf("API error: %d", resp.StatusCode)}
		}
		lastErr = fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if lastErr == nil {
		lastErr = ErrEmbeddingFailed
	}
	return nil, &DependencyError{Collaborator: "embedding", Err: fmt.Errorf("after %d attempts: %w", s.cfg.MaxRetries, lastErr)}
}

// embedWithSDK requests an embedding through the generative-ai SDK
func (s *AIService) embedWithSDK(ctx context.Context, text string) (models.Vector, error) {
	em := s.genaiClient.EmbeddingModel("gemini-embedding-001")
	em.TaskType = genai.TaskTypeSemanticSimilarity

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, errors.New("SDK returned no embedding")
	}
	if len(res.Embedding.Values) != s.cfg.EmbeddingDim {
		return nil, fmt.Errorf("expected %d-dimension embedding, got %d", s.cfg.EmbeddingDim, len(res.Embedding.Values))
	}

	v := make([]float64, len(res.Embedding.Values))
	for i, x := range res.Embedding.Values {
		v[i] = float64(x)
	}
	return normalizeVector(v), nil
}

// normalizeVector scales the embedding to unit length
func normalizeVector(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// CosineSimilarity01 computes cosine similarity rescaled to [0,1] via
// (cos+1)/2. The rescaling assumes the embedding space is not already
// similarity-normalized.
func CosineSimilarity01(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp against floating-point drift before rescaling
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

// callGenerationAPI calls the Gemini generation API once via HTTP
func (s *AIService) callGenerationAPI(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	generationConfig := map[string]interface{}{
		"temperature": temperature,
	}
	if maxTokens > 0 {
		generationConfig["maxOutputTokens"] = maxTokens
	}

	reqBody := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": systemPrompt},
			},
		},
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": userPrompt},
				},
			},
		},
		"generationConfig": generationConfig,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.generationAPI, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.llmClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error: %d - %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
		Error struct {
			Code    int    `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}
	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason)
	}
	if len(apiResp.Candidates) == 0 {
		return "", errors.New("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", errors.New("API returned empty content")
	}
	return result, nil
}

// completeJSON calls the language model with retry and parses its output
// into out, validating it against the call site's schema
func (s *AIService) completeJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64, out schemaValidator) error {
	backoff := s.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		raw, err := s.callGenerationAPI(ctx, systemPrompt, userPrompt, maxTokens, temperature)
		if err != nil {
			lastErr = err
			continue
		}

		if err := json.Unmarshal([]byte(extractJSONBlock(raw)), out); err != nil {
			lastErr = fmt.Errorf("response failed schema parsing: %w", err)
			continue
		}
		if err := out.ValidateSchema(); err != nil {
			lastErr = fmt.Errorf("response failed schema validation: %w", err)
			continue
		}
		return nil
	}

	if lastErr == nil {
		lastErr = ErrGenerationFailed
	}
	return &DependencyError{Collaborator: "language-model", Err: fmt.Errorf("after %d attempts: %w", s.cfg.MaxRetries, lastErr)}
}

// extractJSONBlock strips markdown code fences and surrounding prose from a
// model response, leaving the outermost JSON value
func extractJSONBlock(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return raw
	}
	var end int
	if raw[start] == '{' {
		end = strings.LastIndex(raw, "}")
	} else {
		end = strings.LastIndex(raw, "]")
	}
	if end <= start {
		return raw
	}
	return raw[start : end+1]
}
