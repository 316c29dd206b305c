package image

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeminiGenerator_Generate_Request(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotQuery  string
		gotType   string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"XYZ"}}]}}]}`)
	}))
	defer srv.Close()

	g := &GeminiGenerator{Client: srv.Client(), Key: "test-key", BaseURL: srv.URL + "/"}
	data, err := g.Generate(context.Background(), Params{Prompt: "make it blue", Image: "AAAA"})
	require.NoError(t, err)
	require.Equal(t, "XYZ", data)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/v1beta/models/"+DefaultModel+":generateContent", gotPath)
	require.Equal(t, "key=test-key", gotQuery)
	require.Equal(t, "application/json", gotType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	expected := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": "make it blue"},
					map[string]any{"inlineData": map[string]any{"mimeType": "image/jpeg", "data": "AAAA"}},
				},
			},
		},
		"generationConfig": map[string]any{"responseModalities": []any{"IMAGE"}},
	}
	require.Equal(t, expected, decoded)
}

func TestGeminiGenerator_Generate_Overrides(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"Zm9v"}}]}}]}`)
	}))
	defer srv.Close()

	g := &GeminiGenerator{Client: srv.Client(), Key: "k", BaseURL: srv.URL, APIVersion: "v1", Model: "custom-image"}
	_, err := g.Generate(context.Background(), Params{Prompt: "p", Image: "i"})
	require.NoError(t, err)
	require.Equal(t, "/v1/models/custom-image:generateContent", gotPath)
}

func TestGeminiGenerator_Generate_TransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	g := &GeminiGenerator{Client: http.DefaultClient, Key: "super-secret-key", BaseURL: base}
	_, err := g.Generate(context.Background(), Params{Prompt: "p", Image: "i"})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "super-secret-key")

	var upstream *UpstreamError
	require.False(t, errors.As(err, &upstream))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		want       string
		wantErr    error
		wantStatus int
		wantMsg    string
		wantOther  bool
	}{
		{
			name:   "first inline part wins",
			status: http.StatusOK,
			body: `{"candidates":[{"content":{"parts":[
				{"text":"here you go"},
				{"inlineData":{"mimeType":"image/png","data":"FIRST"}},
				{"inlineData":{"mimeType":"image/png","data":"SECOND"}}]}}]}`,
			want: "FIRST",
		},
		{
			name:   "null error alongside candidates",
			status: http.StatusOK,
			body:   `{"error":null,"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"XYZ"}}]}}]}`,
			want:   "XYZ",
		},
		{
			name:   "empty string error alongside candidates",
			status: http.StatusOK,
			body:   `{"error":"","candidates":[{"content":{"parts":[{"inlineData":{"data":"XYZ"}}]}}]}`,
			want:   "XYZ",
		},
		{
			name:       "string error",
			status:     http.StatusOK,
			body:       `{"error":"denied"}`,
			wantStatus: http.StatusOK,
			wantMsg:    "denied",
		},
		{
			name:    "text only",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: ErrNoImage,
		},
		{
			name:       "quota error",
			status:     http.StatusTooManyRequests,
			body:       `{"error":{"code":429,"message":"You exceeded your current quota, please check your plan.","status":"RESOURCE_EXHAUSTED"}}`,
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    "You exceeded your current quota, please check your plan.",
		},
		{
			name:       "error object with success status",
			status:     http.StatusOK,
			body:       `{"error":{"message":"something odd"}}`,
			wantStatus: http.StatusOK,
			wantMsg:    "something odd",
		},
		{
			name:       "non-json error body",
			status:     http.StatusBadGateway,
			body:       "upstream connect error\n",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream connect error",
		},
		{
			name:       "empty error body",
			status:     http.StatusServiceUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Service Unavailable",
		},
		{
			name:      "malformed success body",
			status:    http.StatusOK,
			body:      `{"candidates":`,
			wantOther: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.status, []byte(tt.body))
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantStatus != 0:
				var upstream *UpstreamError
				require.ErrorAs(t, err, &upstream)
				require.Equal(t, tt.wantStatus, upstream.Status)
				require.Equal(t, tt.wantMsg, upstream.Message)
			case tt.wantOther:
				require.Error(t, err)
				require.NotErrorIs(t, err, ErrNoImage)
			default:
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
		})
	}
}
