package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderClova is the provider identifier for HyperCLOVA X.
const ProviderClova = "clova"

// ClovaProvider implements ChatProvider and Embedder against the CLOVA
// Studio API.
type ClovaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	client     *http.Client
}

// ClovaOption configures the CLOVA provider.
type ClovaOption func(*ClovaProvider)

// WithClovaBaseURL sets a custom base URL (used by tests and proxies).
func WithClovaBaseURL(url string) ClovaOption {
	return func(p *ClovaProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithClovaModel sets the default chat model.
func WithClovaModel(model string) ClovaOption {
	return func(p *ClovaProvider) { p.model = model }
}

// WithClovaEmbedModel sets the embedding endpoint name.
func WithClovaEmbedModel(model string) ClovaOption {
	return func(p *ClovaProvider) { p.embedModel = model }
}

// WithClovaHTTPClient sets a custom HTTP client.
func WithClovaHTTPClient(client *http.Client) ClovaOption {
	return func(p *ClovaProvider) { p.client = client }
}

// NewClovaProvider creates a CLOVA Studio provider. An empty apiKey is
// allowed when every call carries a per-request bearer.
func NewClovaProvider(apiKey string, opts ...ClovaOption) *ClovaProvider {
	p := &ClovaProvider{
		apiKey:     apiKey,
		baseURL:    "https://clovastudio.stream.ntruss.com",
		model:      "HCX-005",
		embedModel: "v2",
		client:     &http.Client{Timeout: 40 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ClovaProvider) Name() string { return ProviderClova }

// Ping verifies reachability with a one-token completion.
func (p *ClovaProvider) Ping(ctx context.Context) error {
	_, err := p.Chat(ctx, []Message{UserMessage("ping")}, &ChatOptions{MaxTokens: 1})
	return err
}

// Chat sends a chat completion request to CLOVA Studio.
func (p *ClovaProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}

	body := p.buildRequest(messages, opts)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("clova: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v3/chat-completions/%s", p.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := p.setHeaders(req, opts); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return nil, err
	}

	var result clovaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("clova: decode response: %w", err)
	}
	return p.parseResponse(&result, model, start)
}

// Embed encodes one text with the CLOVA embedding endpoint.
func (p *ClovaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("clova: marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/api-tools/embedding/%s", p.baseURL, p.embedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := p.setHeaders(req, nil); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := p.checkError(resp); err != nil {
		return nil, err
	}

	var result clovaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("clova: decode embed response: %w", err)
	}
	if len(result.Result.Embedding) == 0 {
		return nil, fmt.Errorf("clova: empty embedding for %q", text)
	}
	return result.Result.Embedding, nil
}

// ── Internal Types ──

type clovaChatRequest struct {
	Messages    []clovaMessage `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"maxTokens,omitempty"`
	TopP        *float64       `json:"topP,omitempty"`
	StopBefore  []string       `json:"stopBefore,omitempty"`
}

type clovaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type clovaChatResponse struct {
	Status clovaStatus `json:"status"`
	Result struct {
		Message      clovaMessage `json:"message"`
		StopReason   string       `json:"stopReason"`
		InputLength  int          `json:"inputLength"`
		OutputLength int          `json:"outputLength"`
	} `json:"result"`
}

type clovaEmbedResponse struct {
	Status clovaStatus `json:"status"`
	Result struct {
		Embedding []float64 `json:"embedding"`
	} `json:"result"`
}

type clovaStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ── Helpers ──

func (p *ClovaProvider) buildRequest(messages []Message, opts *ChatOptions) clovaChatRequest {
	r := clovaChatRequest{Messages: make([]clovaMessage, len(messages))}
	for i, m := range messages {
		r.Messages[i] = clovaMessage{Role: string(m.Role), Content: m.Content}
	}
	if opts != nil {
		if opts.Temperature > 0 {
			r.Temperature = &opts.Temperature
		}
		if opts.MaxTokens > 0 {
			r.MaxTokens = &opts.MaxTokens
		}
		if opts.TopP > 0 {
			r.TopP = &opts.TopP
		}
		r.StopBefore = opts.Stop
	}
	return r
}

// setHeaders applies the CLOVA Studio header set. The per-request bearer
// from opts wins over the configured key; a fresh request id is minted per
// call as the API requires.
func (p *ClovaProvider) setHeaders(req *http.Request, opts *ChatOptions) error {
	key := p.apiKey
	if opts != nil && opts.Bearer != "" {
		key = opts.Bearer
	}
	if key == "" {
		return ErrNoAPIKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("X-NCP-CLOVASTUDIO-REQUEST-ID", uuid.NewString())
	return nil
}

func (p *ClovaProvider) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Status clovaStatus `json:"status"`
	}
	msg := string(body)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Status.Message != "" {
		msg = apiErr.Status.Message
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests, 529:
		return fmt.Errorf("%w: %s", ErrRateLimit, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvalidModel, msg)
	}
	return fmt.Errorf("clova: API error (%d): %s", resp.StatusCode, msg)
}

func (p *ClovaProvider) parseResponse(raw *clovaChatResponse, model string, start time.Time) (*Response, error) {
	content := strings.TrimSpace(raw.Result.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w (status %s)", ErrEmptyAnswer, raw.Status.Code)
	}
	return &Response{
		Content:    content,
		StopReason: raw.Result.StopReason,
		Model:      model,
		Latency:    time.Since(start),
		Usage: Usage{
			PromptTokens:     raw.Result.InputLength,
			CompletionTokens: raw.Result.OutputLength,
			TotalTokens:      raw.Result.InputLength + raw.Result.OutputLength,
		},
	}, nil
}
