package usecase

import (
	"context"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

type filenameResolver interface {
	Resolve(ctx context.Context, filename string) (string, bool)
}

// CitationEnricher turns raw citation markers into user-facing citations.
type CitationEnricher struct {
	references filenameResolver
}

func NewCitationEnricher(references filenameResolver) *CitationEnricher {
	return &CitationEnricher{references: references}
}

// Enrich returns file citations followed by web citations, each deduplicated
// and kept in order of first appearance. File lookups run concurrently.
func (e *CitationEnricher) Enrich(ctx context.Context, markers []domain.RawCitation) []domain.EnrichedCitation {
	files := make([]string, 0, len(markers))
	webs := make([]domain.RawCitation, 0, len(markers))
	seenFiles := make(map[string]struct{}, len(markers))
	seenURLs := make(map[string]struct{}, len(markers))

	for _, marker := range markers {
		switch marker.Kind {
		case domain.CitationFile:
			name := strings.TrimSpace(marker.Filename)
			if name == "" {
				continue
			}
			if _, ok := seenFiles[name]; ok {
				continue
			}
			seenFiles[name] = struct{}{}
			files = append(files, name)
		case domain.CitationWeb:
			link := strings.TrimSpace(marker.URL)
			if link == "" {
				continue
			}
			if _, ok := seenURLs[link]; ok {
				continue
			}
			seenURLs[link] = struct{}{}
			webs = append(webs, domain.WebCitation(link, marker.Title))
		}
	}

	out := make([]domain.EnrichedCitation, 0, len(files)+len(webs))
	out = append(out, e.enrichFiles(ctx, files)...)
	for _, web := range webs {
		link := web.URL
		out = append(out, domain.EnrichedCitation{
			Title: webTitle(web),
			URL:   &link,
		})
	}
	return out
}

func (e *CitationEnricher) enrichFiles(ctx context.Context, files []string) []domain.EnrichedCitation {
	out := make([]domain.EnrichedCitation, len(files))
	if len(files) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	for idx, name := range files {
		g.Go(func() error {
			out[idx] = domain.EnrichedCitation{Title: fileTitle(name)}
			// A failed lookup leaves the citation without a link.
			defer func() {
				if recovered := recover(); recovered != nil {
					out[idx].URL = nil
				}
			}()
			if e.references != nil {
				if link, ok := e.references.Resolve(gctx, name); ok {
					out[idx].URL = &link
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fileTitle strips the final extension: "dorm-handbook.pdf" -> "dorm-handbook".
func fileTitle(filename string) string {
	ext := path.Ext(filename)
	if ext == "" || ext == filename {
		return filename
	}
	return strings.TrimSuffix(filename, ext)
}

func webTitle(citation domain.RawCitation) string {
	if title := strings.TrimSpace(citation.Title); title != "" {
		return title
	}
	parsed, err := url.Parse(citation.URL)
	if err != nil || parsed.Hostname() == "" {
		return citation.URL
	}
	return parsed.Hostname()
}
