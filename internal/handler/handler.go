package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmorgan81/imagegen-proxy/internal/image"
	"github.com/dmorgan81/imagegen-proxy/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/text/language"
)

const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgMissingKey       = "Server configuration error: GEMINI_API_KEY is not set."
	msgMissingParams    = "Missing required parameters: base64Image and prompt."
	msgNoImage          = "Failed to extract generated image data."
	msgInternalPrefix   = "Internal server error: "
)

// Request is the transport-neutral view of one invocation.
type Request struct {
	Method         string
	Body           io.Reader
	AcceptLanguage string
}

// Body is the JSON document written back to the caller.
type Body struct {
	Data           string `json:"data,omitempty"`
	Error          string `json:"error,omitempty"`
	OriginalStatus *int   `json:"originalStatus,omitempty"`
}

type Response struct {
	StatusCode int
	Body       Body
}

type Input struct {
	Base64Image string `json:"base64Image"`
	Prompt      string `json:"prompt"`
}

func (i Input) toImageParams() image.Params {
	return image.Params{
		Prompt: i.Prompt,
		Image:  i.Base64Image,
	}
}

type Handler struct {
	apiKey    string
	generator image.Generator
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		apiKey:    do.MustInvokeNamed[string](i, "gemini_api_key"),
		generator: do.MustInvoke[image.Generator](i),
	}, nil
}

func (h *Handler) Handle(ctx context.Context, req Request) Response {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("method", req.Method)
	log.Info("handling invocation")

	if req.Method != http.MethodPost {
		log.Warn("rejecting method")
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	if h.apiKey == "" {
		log.Error("GEMINI_API_KEY is not set")
		return errorResponse(http.StatusInternalServerError, msgMissingKey)
	}

	input, err := decodeInput(req.Body)
	if err != nil {
		return internalError(log, err)
	}
	if input.Base64Image == "" || input.Prompt == "" {
		log.Warn("missing required parameters",
			"has_image", input.Base64Image != "", "has_prompt", input.Prompt != "")
		return errorResponse(http.StatusBadRequest, msgMissingParams)
	}

	data, err := h.generator.Generate(ctx, input.toImageParams())
	if err != nil {
		return mapGenerateError(log, negotiate(req.AcceptLanguage), err)
	}

	log.Info("returning generated image", "bytes", len(data))
	return Response{StatusCode: http.StatusOK, Body: Body{Data: data}}
}

func decodeInput(r io.Reader) (Input, error) {
	var input Input
	if r == nil {
		return input, nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return input, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return input, nil
	}
	err = json.Unmarshal(raw, &input)
	return input, err
}

func mapGenerateError(log *slog.Logger, lang language.Tag, err error) Response {
	var upstream *image.UpstreamError
	switch {
	case errors.As(err, &upstream):
		log.Error("image api returned an error", "status", upstream.Status, "message", upstream.Message)
		status := lo.Ternary(upstream.Status >= http.StatusBadRequest, upstream.Status, http.StatusInternalServerError)
		return Response{
			StatusCode: status,
			Body: Body{
				Error:          sanitize(upstream.Message, lang),
				OriginalStatus: lo.ToPtr(upstream.Status),
			},
		}
	case errors.Is(err, image.ErrNoImage):
		log.Error("no image in image api response")
		return errorResponse(http.StatusInternalServerError, msgNoImage)
	default:
		return internalError(log, err)
	}
}

func internalError(log *slog.Logger, err error) Response {
	log.Error("internal server error", "error", err)
	return errorResponse(http.StatusInternalServerError, msgInternalPrefix+err.Error())
}

func errorResponse(status int, msg string) Response {
	return Response{StatusCode: status, Body: Body{Error: msg}}
}
