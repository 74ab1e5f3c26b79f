package provider

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

const (
	geminiDefaultBase  = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-1.5-pro"
)

// GeminiProvider implements LLMProvider using the Gemini REST API with a
// static API key.
type GeminiProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewGeminiProvider creates a Gemini provider. An empty apiBase targets the
// public endpoint.
func NewGeminiProvider(apiKey, apiBase, defaultModel string) *GeminiProvider {
	if apiBase == "" {
		apiBase = geminiDefaultBase
	}
	if defaultModel == "" {
		defaultModel = geminiDefaultModel
	}
	return &GeminiProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *GeminiProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	gemReq := p.buildGeminiRequest(req)
	if len(gemReq.Contents) == 0 {
		return nil, fmt.Errorf("gemini: no messages to process")
	}
	jsonBody, err := json.Marshal(gemReq)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.apiBase, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	q := httpReq.URL.Query()
	q.Set("key", p.apiKey)
	httpReq.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out, err := p.parseGeminiResponse(respBody)
	if err != nil {
		return nil, err
	}
	out.Model = model
	return out, nil
}

// --- Gemini request/response types ---

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// buildGeminiRequest maps the conversation onto Gemini contents. Leading
// system turns become the system instruction; later ones (tool observations)
// are sent as user turns because Gemini has no mid-conversation system role.
func (p *GeminiProvider) buildGeminiRequest(req *ChatRequest) *geminiRequest {
	gemReq := &geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}

	var system []string
	leading := true
	for _, msg := range req.Messages {
		if leading && msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		leading = false

		role := RoleUser
		if msg.Role == RoleAssistant {
			role = "model"
		}
		content := geminiContent{Role: role}
		if msg.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			content.Parts = append(content.Parts, geminiPart{
				FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: args},
			})
		}
		if len(content.Parts) == 0 {
			continue
		}
		gemReq.Contents = append(gemReq.Contents, content)
	}
	if len(system) > 0 {
		gemReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDecl{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		gemReq.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	return gemReq
}

func (p *GeminiProvider) parseGeminiResponse(body []byte) (*ChatResponse, error) {
	var gemResp geminiResponse
	if err := json.Unmarshal(body, &gemResp); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(gemResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in gemini response")
	}

	candidate := gemResp.Candidates[0]
	result := &ChatResponse{
		FinishReason: candidate.FinishReason,
	}

	if gemResp.UsageMetadata != nil {
		result.Usage = &Usage{
			PromptTokens:     gemResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gemResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gemResp.UsageMetadata.TotalTokenCount,
		}
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			result.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || part.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        uuid.NewString(),
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}

	return result, nil
}
