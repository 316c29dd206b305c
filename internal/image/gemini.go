package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmorgan81/imagegen-proxy/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.5-flash-image-preview"

	inputMimeType = "image/jpeg"
)

type GeminiGenerator struct {
	Client     *http.Client
	Key        string
	BaseURL    string
	APIVersion string
	Model      string
}

func NewGeminiGenerator(i *do.Injector) (Generator, error) {
	return &GeminiGenerator{
		Client:     do.MustInvoke[*http.Client](i),
		Key:        do.MustInvokeNamed[string](i, "gemini_api_key"),
		BaseURL:    do.MustInvokeNamed[string](i, "gemini_base_url"),
		APIVersion: do.MustInvokeNamed[string](i, "gemini_api_version"),
		Model:      do.MustInvokeNamed[string](i, "gemini_model"),
	}, nil
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func newRequest(params Params) generateContentRequest {
	return generateContentRequest{
		Contents: []content{{
			Parts: []part{
				{Text: params.Prompt},
				{InlineData: &blob{MimeType: inputMimeType, Data: params.Image}},
			},
		}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"IMAGE"}},
	}
}

func (g *GeminiGenerator) endpoint() string {
	base := strings.TrimRight(lo.Ternary(g.BaseURL != "", g.BaseURL, DefaultBaseURL), "/")
	version := lo.Ternary(g.APIVersion != "", g.APIVersion, DefaultAPIVersion)
	model := lo.Ternary(g.Model != "", g.Model, DefaultModel)
	return fmt.Sprintf("%s/%s/models/%s:generateContent", base, version, model)
}

func (g *GeminiGenerator) Generate(ctx context.Context, params Params) (string, error) {
	endpoint := g.endpoint()
	log := log.FromContextOrDiscard(ctx).WithGroup("gemini").With("endpoint", endpoint, "prompt", params.Prompt)
	log.Info("generating image via gemini")

	body, err := json.Marshal(newRequest(params))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+url.Values{"key": {g.Key}}.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	log.Info("received response from gemini", "status", resp.StatusCode, "bytes", len(raw))

	return parseResponse(resp.StatusCode, raw)
}

func parseResponse(status int, raw []byte) (string, error) {
	valid := gjson.ValidBytes(raw)
	var apiErr gjson.Result
	if valid {
		apiErr = gjson.GetBytes(raw, "error")
	}

	if status < 200 || status > 299 || truthy(apiErr) {
		return "", &UpstreamError{Status: status, Message: upstreamMessage(status, apiErr, raw)}
	}
	if !valid {
		return "", errors.New("decode response: body is not valid JSON")
	}

	var data string
	gjson.GetBytes(raw, "candidates.0.content.parts").ForEach(func(_, p gjson.Result) bool {
		if d := p.Get("inlineData.data"); d.String() != "" {
			data = d.String()
			return false
		}
		return true
	})
	if data == "" {
		return "", ErrNoImage
	}
	return data, nil
}

// truthy reports whether an error field is set to anything but null, false, 0 or "".
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.JSON, gjson.True:
		return true
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	default:
		return false
	}
}

func upstreamMessage(status int, apiErr gjson.Result, raw []byte) string {
	switch {
	case apiErr.Get("message").String() != "":
		return apiErr.Get("message").String()
	case apiErr.Type == gjson.String && apiErr.String() != "":
		return apiErr.String()
	case len(bytes.TrimSpace(raw)) > 0:
		return string(bytes.TrimSpace(raw))
	default:
		return http.StatusText(status)
	}
}

// redact strips the query string, and with it the API key, from url.Error values.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		return &url.Error{Op: urlErr.Op, URL: "[redacted]", Err: urlErr.Err}
	}
	u.RawQuery = ""
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}
