package loader

import (
	"context"
	"strings"

	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// WordsPerPage is the fixed number of words on one plain-text page.
const WordsPerPage = 500

// TextLoader paginates UTF-8 text payloads. Pagination is pure and recomputed
// on every load; there is no incremental state to resume.
type TextLoader struct{}

// Load decodes the payload as UTF-8 (invalid sequences are replaced, never
// fatal) and groups whitespace-delimited words greedily into fixed-size
// pages. Empty content yields exactly one empty page.
func (l *TextLoader) Load(_ context.Context, payload []byte) (*Rendition, error) {
	text := strings.ToValidUTF8(string(payload), "�")
	return &Rendition{
		Format:   domain.FormatText,
		Chapters: paginateText(text),
	}, nil
}

func paginateText(text string) []domain.Chapter {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []domain.Chapter{{Index: 0, Mode: domain.ModePlainText}}
	}
	pages := make([]domain.Chapter, 0, (len(words)+WordsPerPage-1)/WordsPerPage)
	for start := 0; start < len(words); start += WordsPerPage {
		end := start + WordsPerPage
		if end > len(words) {
			end = len(words)
		}
		pages = append(pages, domain.Chapter{
			Index:   len(pages),
			Content: strings.Join(words[start:end], " "),
			Mode:    domain.ModePlainText,
		})
	}
	return pages
}
