// Package azureclients implements the thin REST client for the out-of-scope
// completion/embedding/document-layout collaborator services spec.md §2
// treats as external dependencies. It is the only package in this system
// that constructs a raw net/http.Client; every call it makes is wrapped by
// internal/resilience at the call site in internal/embedclient and
// internal/layoutclient, following the reference system's
// Toolkit/Commons/http.Client pattern of a single low-level transport
// wrapped by a higher-level retrying policy.
package azureclients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
)

// FoundryClient talks to the chat-completion, embedding, and vision
// endpoints behind a single base URL and API key, the shape an Azure AI
// Foundry deployment exposes.
type FoundryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFoundryClient constructs a client with the given connection pooling.
func NewFoundryClient(baseURL, apiKey string, connectTimeout, requestTimeout time.Duration, maxConnsPerHost int) *FoundryClient {
	transport := &http.Transport{
		MaxConnsPerHost:     maxConnsPerHost,
		MaxIdleConnsPerHost: maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &FoundryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat issues a single-turn completion request.
func (c *FoundryClient) Chat(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.KindUpstreamTerminal, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed requests embeddings for a batch of texts, preserving input order.
func (c *FoundryClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	reqBody := embedRequest{Model: model, Input: texts}
	var resp embedResponse
	if err := c.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// AnalyzeLayout requests document-layout analysis for a PDF payload.
func (c *FoundryClient) AnalyzeLayout(ctx context.Context, pdf []byte) (*LayoutResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documentintelligence/analyze", bytes.NewReader(pdf))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "building layout analysis request")
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "layout analysis request failed")
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode >= 300 {
		return nil, c.classifyError(httpResp, body)
	}

	var out LayoutResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTerminal, err, "decoding layout analysis response")
	}
	return &out, nil
}

func (c *FoundryClient) post(ctx context.Context, path string, reqBody any, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "encoding request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamTransient, err, fmt.Sprintf("request to %s failed", path))
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode >= 300 {
		return c.classifyError(httpResp, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.Wrap(apperrors.KindUpstreamTerminal, err, fmt.Sprintf("decoding response from %s", path))
		}
	}
	return nil
}

func (c *FoundryClient) classifyError(resp *http.Response, body []byte) error {
	retryAfter := 0
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			retryAfter = secs
		}
	}
	return apperrors.FromHTTPStatus(resp.StatusCode, retryAfter, string(body))
}

// LayoutResponse is the raw decoded shape of a document-layout analysis
// response; internal/layoutclient translates it into models.Layout.
type LayoutResponse struct {
	Pages []struct {
		PageNumber int    `json:"page_number"`
		Text       string `json:"text"`
	} `json:"pages"`
	Tables []struct {
		PageNumber int        `json:"page_number"`
		Rows       [][]string `json:"rows"`
	} `json:"tables"`
	Figures []struct {
		PageNumber int    `json:"page_number"`
		Caption    string `json:"caption"`
		ImageData  []byte `json:"image_data"`
	} `json:"figures"`
}
