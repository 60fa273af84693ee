// Package gemini provides a Responder implementation for the Google Gemini
// image generation API.
package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/fragment"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/modeladapter/usage"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// DefaultBaseURL is the public Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// defaultInlineType is assumed for inline data the endpoint sends untyped.
const defaultInlineType = "image/png"

var _ modeladapter.Responder = (*Adapter)(nil)

// Adapter implements modeladapter.Responder for the Google Gemini API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Gemini API. An empty baseURL
// selects DefaultBaseURL. The apiKey is a fallback; requests normally carry
// their own key. The model always comes from the request settings.
func New(baseURL, apiKey string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = strings.TrimRight(baseURL, "/")
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-goog-api-key",
	}
	return a
}

// Stream opens a server-sent event stream for req.
func (a *Adapter) Stream(ctx context.Context, req modeladapter.Request) (modeladapter.Stream, error) {
	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}

	path := a.modelPath(req.Settings, "streamGenerateContent") + "?alt=sse"

	resp, err := a.PostStream(ctx, path, buildRequest(req), a.requestOptions(req)...)
	if err != nil {
		return nil, wrap(err)
	}

	return newEventStream(resp.Body, &a.Usage), nil
}

// Generate performs a single non-streaming call for req.
func (a *Adapter) Generate(ctx context.Context, req modeladapter.Request) ([]content.Part, error) {
	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}

	path := a.modelPath(req.Settings, "generateContent")

	var resp apiResponse
	if err := a.PostJSON(ctx, path, buildRequest(req), &resp, a.requestOptions(req)...); err != nil {
		return nil, wrap(err)
	}

	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}

	a.recordUsage(resp.UsageMetadata)

	if resp.Error != nil {
		return nil, resp.Error.err()
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || resp.Candidates[0].Content.Parts == nil {
		return nil, errNoContent()
	}

	var m fragment.Merger
	if err := ingest(&m, resp.Candidates[0].Content.Parts); err != nil {
		return nil, err
	}

	return m.Parts(), nil
}

func (a *Adapter) modelPath(s settings.Settings, method string) string {
	return fmt.Sprintf("/v1beta/models/%s:%s", url.PathEscape(s.ModelName()), method)
}

func (a *Adapter) requestOptions(req modeladapter.Request) []modeladapter.RequestOption {
	opts := []modeladapter.RequestOption{modeladapter.WithBaseURL(req.Settings.Endpoint)}
	if req.APIKey != "" {
		opts = append(opts, modeladapter.WithKey(req.APIKey))
	}
	return opts
}

func (a *Adapter) recordUsage(m *apiUsageMeta) {
	if m == nil {
		return
	}
	a.Usage.Add(m.tokenCount())
}

// wrap leaves cancellation untouched so callers can classify it.
func wrap(err error) error {
	if modeladapter.IsCanceled(err) {
		return modeladapter.ErrCanceled
	}
	return fmt.Errorf("gemini: %w", err)
}

// --- request types ---

type apiRequest struct {
	Contents         []apiContent     `json:"contents"`
	Tools            []apiTool        `json:"tools,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text             *string        `json:"text,omitempty"`
	InlineData       *apiInlineData `json:"inlineData,omitempty"`
	Thought          bool           `json:"thought,omitempty"`
	ThoughtSignature string         `json:"thoughtSignature,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type apiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string        `json:"responseModalities"`
	ImageConfig        imageConfig     `json:"imageConfig"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type imageConfig struct {
	ImageSize   string `json:"imageSize,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type thinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts"`
}

// --- response types ---

type apiResponse struct {
	Candidates    []apiCandidate `json:"candidates"`
	UsageMetadata *apiUsageMeta  `json:"usageMetadata"`
	Error         *apiStatus     `json:"error"`
}

// apiStatus is the error envelope the endpoint sends in place of a response,
// including mid-stream.
type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (s apiStatus) err() error {
	msg := s.Message
	if msg == "" {
		msg = s.Status
	}
	if msg == "" {
		msg = "unknown error"
	}
	return &modeladapter.APIError{StatusCode: s.Code, Message: msg}
}

// errNoContent reports a response that completed without any parts.
func errNoContent() error {
	return &modeladapter.APIError{Message: "no content generated"}
}

type apiCandidate struct {
	Content      *apiContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type apiUsageMeta struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (m apiUsageMeta) tokenCount() usage.TokenCount {
	return usage.TokenCount{
		PromptTokens:    m.PromptTokenCount,
		CandidateTokens: m.CandidatesTokenCount,
		ThoughtTokens:   m.ThoughtsTokenCount,
	}
}

// --- conversion helpers ---

func buildRequest(req modeladapter.Request) apiRequest {
	s := req.Settings.Normalize()

	out := apiRequest{
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        imageConfig{ImageSize: string(s.Resolution)},
		},
	}

	if s.AspectRatio != settings.AspectAuto {
		out.GenerationConfig.ImageConfig.AspectRatio = string(s.AspectRatio)
	}
	if s.ShowThoughts {
		out.GenerationConfig.ThinkingConfig = &thinkingConfig{IncludeThoughts: true}
	}
	if s.Grounding {
		out.Tools = []apiTool{{GoogleSearch: &struct{}{}}}
	}

	for _, t := range req.History {
		if c, ok := historyContent(t); ok {
			out.Contents = append(out.Contents, c)
		}
	}
	out.Contents = append(out.Contents, userContent(req.Input))

	return out
}

// historyContent converts a logged turn. Thought parts are never resent and
// turns left without parts are dropped.
func historyContent(t turn.Turn) (apiContent, bool) {
	parts := t.Parts
	if t.Role == role.Model {
		parts = content.Visible(parts)
	}
	if len(parts) == 0 {
		return apiContent{}, false
	}

	c := apiContent{Role: mapRole(t.Role), Parts: make([]apiPart, 0, len(parts))}
	for _, p := range parts {
		switch v := p.(type) {
		case content.Text:
			c.Parts = append(c.Parts, apiPart{Text: &v.Text, ThoughtSignature: v.Signature})
		case content.Inline:
			c.Parts = append(c.Parts, apiPart{
				InlineData:       &apiInlineData{MimeType: v.MediaType, Data: v.Data},
				ThoughtSignature: v.Signature,
			})
		}
	}
	return c, true
}

// userContent builds the fresh user turn: attachments first, then the text
// unless it is blank.
func userContent(in modeladapter.Input) apiContent {
	c := apiContent{Role: "user", Parts: make([]apiPart, 0, len(in.Attachments)+1)}
	for _, att := range in.Attachments {
		c.Parts = append(c.Parts, apiPart{
			InlineData: &apiInlineData{MimeType: att.MediaType, Data: att.Data},
		})
	}
	if strings.TrimSpace(in.Text) != "" {
		text := in.Text
		c.Parts = append(c.Parts, apiPart{Text: &text})
	}
	return c
}

func mapRole(r role.Role) string {
	if r == role.Model {
		return "model"
	}
	return "user"
}

// toFragment validates one wire part. Parts carrying neither text nor inline
// data are skipped.
func toFragment(p apiPart) (fragment.Fragment, bool, error) {
	switch {
	case p.Text != nil:
		return fragment.Text(*p.Text, p.Thought).WithSignature(p.ThoughtSignature), true, nil
	case p.InlineData != nil:
		mime := p.InlineData.MimeType
		if mime == "" {
			mime = defaultInlineType
		}
		f := fragment.Inline(mime, p.InlineData.Data, p.Thought).WithSignature(p.ThoughtSignature)
		if err := f.Validate(); err != nil {
			return fragment.Fragment{}, false, &modeladapter.APIError{Message: fmt.Sprintf("malformed inline data: %v", err)}
		}
		return f, true, nil
	}
	return fragment.Fragment{}, false, nil
}

// ingest validates every part before merging any of them, so a response is
// either applied whole or rejected.
func ingest(m *fragment.Merger, parts []apiPart) error {
	frags := make([]fragment.Fragment, 0, len(parts))
	for _, p := range parts {
		f, ok, err := toFragment(p)
		if err != nil {
			return err
		}
		if ok {
			frags = append(frags, f)
		}
	}
	for _, f := range frags {
		m.Add(f)
	}
	return nil
}
