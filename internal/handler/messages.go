package handler

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/language"
)

// retryMarkers are matched against raw upstream messages. Anything else gets the generic message.
var retryMarkers = []string{
	"API key was reported as leaked",
	"exceeded your current quota",
}

type upstreamMessages struct {
	retry   string
	generic string
}

// supported[0] is the fallback.
var supported = []language.Tag{language.English, language.Japanese}

var matcher = language.NewMatcher(supported)

var messages = map[language.Tag]upstreamMessages{
	language.English: {
		retry:   "The image generation service hit a temporary problem or its usage quota has been exceeded. Please try again later.",
		generic: "An error occurred on the image generation server.",
	},
	language.Japanese: {
		retry:   "一時的な問題が発生したか、利用上限を超えました。しばらくしてから再度お試しください。",
		generic: "画像生成サーバーでエラーが発生しました。",
	},
}

func negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

func sanitize(raw string, lang language.Tag) string {
	m, ok := messages[lang]
	if !ok {
		m = messages[supported[0]]
	}
	retry := lo.SomeBy(retryMarkers, func(marker string) bool {
		return strings.Contains(raw, marker)
	})
	return lo.Ternary(retry, m.retry, m.generic)
}
