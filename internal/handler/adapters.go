package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/samber/lo"
)

const contentTypeJSON = "application/json"

// HandleFunctionURL serves a Lambda Function URL invocation. Failures are encoded in the response, never returned.
func (h *Handler) HandleFunctionURL(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := strings.NewReader(event.Body)
	req := Request{
		Method:         event.RequestContext.HTTP.Method,
		Body:           body,
		AcceptLanguage: header(event.Headers, "Accept-Language"),
	}
	if event.IsBase64Encoded {
		req.Body = base64.NewDecoder(base64.StdEncoding, body)
	}

	resp := h.Handle(ctx, req)
	data, err := json.Marshal(resp.Body)
	if err != nil {
		return events.LambdaFunctionURLResponse{}, err
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": contentTypeJSON},
		Body:       string(data),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.Handle(r.Context(), Request{
		Method:         r.Method,
		Body:           r.Body,
		AcceptLanguage: r.Header.Get("Accept-Language"),
	})

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(resp.StatusCode)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// header looks up a header case-insensitively; Function URL events lowercase names.
func header(headers map[string]string, name string) string {
	key, ok := lo.FindKeyBy(headers, func(k string, _ string) bool {
		return strings.EqualFold(k, name)
	})
	return lo.Ternary(ok, headers[key], "")
}
