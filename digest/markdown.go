package digest

import (
	"fmt"
	nurl "net/url"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// conv is safe for concurrent use; all jobs share it.
var conv = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Markdown renders the page's main content as Markdown. When readability
// cannot isolate an article the whole document is converted instead.
// Relative links resolve against sourceURL.
func Markdown(rawHTML, sourceURL string) (string, error) {
	body := rawHTML
	art, ok := article(rawHTML, sourceURL)
	if ok {
		body = art.Content
	}

	domain := ""
	if u, err := nurl.Parse(sourceURL); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}

	md, err := conv.ConvertString(body, converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("digest: markdown: %w", err)
	}
	if ok && art.Title != "" {
		md = "# " + art.Title + "\n\n" + md
	}
	return md, nil
}
