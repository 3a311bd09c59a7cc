package telegram

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
)

var headingTags = regexp.MustCompile(`</?h[1-6][^>]*>`)

// telegramTags rewrites the HTML goldmark emits into the small tag set
// Telegram's HTML parse mode accepts. Block structure becomes newlines;
// inline emphasis, code and links pass through.
var telegramTags = strings.NewReplacer(
	"<p>", "",
	"</p>", "\n\n",
	"<ul>", "",
	"</ul>", "\n",
	"<ol>", "",
	"</ol>", "\n",
	"<li>", "• ",
	"</li>", "\n",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"<hr>", "\n",
	"<hr/>", "\n",
	"<hr />", "\n",
	"<blockquote>\n", "<blockquote>",
)

// RenderHTML converts model-produced Markdown into Telegram-flavoured HTML.
// On conversion failure the caller should fall back to plain text.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}

	out := buf.String()
	out = headingTags.ReplaceAllStringFunc(out, func(tag string) string {
		if strings.HasPrefix(tag, "</") {
			return "</b>\n"
		}
		return "<b>"
	})
	out = telegramTags.Replace(out)
	return strings.TrimSpace(out), nil
}
