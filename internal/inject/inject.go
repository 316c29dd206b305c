package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagegen-proxy/internal/handler"
	"github.com/dmorgan81/imagegen-proxy/internal/image"
	"github.com/dmorgan81/imagegen-proxy/internal/log"
	"github.com/dmorgan81/imagegen-proxy/internal/param"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func Setup(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[image.Generator](injector, image.NewGeminiGenerator)

	do.ProvideNamed[string](injector, "gemini_api_key", func(i *do.Injector) (string, error) {
		return apiKey(ctx, i), nil
	})
	do.ProvideNamedValue[string](injector, "gemini_base_url", getEnv("GEMINI_BASE_URL", image.DefaultBaseURL))
	do.ProvideNamedValue[string](injector, "gemini_api_version", getEnv("GEMINI_API_VERSION", image.DefaultAPIVersion))
	do.ProvideNamedValue[string](injector, "gemini_model", getEnv("GEMINI_MODEL", image.DefaultModel))

	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}

// apiKey prefers GEMINI_API_KEY and falls back to the SSM parameter named by GEMINI_API_KEY_PARAM.
// Lookup failures leave the key empty so every request reports the configuration error.
func apiKey(ctx context.Context, i *do.Injector) string {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		return key
	}

	log := log.FromContextOrDiscard(ctx)
	path := strings.TrimSpace(os.Getenv("GEMINI_API_KEY_PARAM"))
	if path == "" {
		log.Warn("neither GEMINI_API_KEY nor GEMINI_API_KEY_PARAM is set")
		return ""
	}

	fetcher, err := do.Invoke[param.Fetcher](i)
	if err != nil {
		log.Error("building parameter store client", "error", err)
		return ""
	}
	key, err := fetcher.Fetch(ctx, path)
	if err != nil {
		log.Error("fetching GEMINI_API_KEY from parameter store", "error", err)
		return ""
	}
	return key
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	return lo.Ternary(v != "", v, fallback)
}
