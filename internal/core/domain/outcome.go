package domain

import "strings"

const (
	SentinelDenied   = "DENIED"
	SentinelNotFound = "NOT_FOUND"
)

type Stage string

const (
	StageCorpus Stage = "corpus"
	StageWeb    Stage = "web"
)

type Verdict string

const (
	VerdictAnswered Verdict = "answered"
	VerdictDenied   Verdict = "denied"
	VerdictNotFound Verdict = "not_found"
)

type CitationKind string

const (
	CitationFile CitationKind = "file"
	CitationWeb  CitationKind = "web"
)

// RawCitation is a citation marker as returned by a search capability.
// File markers carry Filename; web markers carry URL and an optional Title.
type RawCitation struct {
	Kind     CitationKind `json:"kind"`
	Filename string       `json:"filename,omitempty"`
	URL      string       `json:"url,omitempty"`
	Title    string       `json:"title,omitempty"`
}

func FileCitation(filename string) RawCitation {
	return RawCitation{Kind: CitationFile, Filename: filename}
}

func WebCitation(url, title string) RawCitation {
	return RawCitation{Kind: CitationWeb, URL: url, Title: title}
}

// SearchOutcome is the typed result of one search call.
type SearchOutcome struct {
	Verdict   Verdict
	Text      string
	Citations []RawCitation
}

// ReadCorpusReply is the only place sentinel text is interpreted.
func ReadCorpusReply(text string, citations []RawCitation) SearchOutcome {
	switch normalizeSentinel(text) {
	case SentinelDenied:
		return SearchOutcome{Verdict: VerdictDenied}
	case SentinelNotFound:
		return SearchOutcome{Verdict: VerdictNotFound}
	default:
		return SearchOutcome{
			Verdict:   VerdictAnswered,
			Text:      strings.TrimSpace(text),
			Citations: citations,
		}
	}
}

func normalizeSentinel(text string) string {
	return strings.Trim(strings.TrimSpace(text), " \t\r\n`*\"'.")
}

// OnlyCitations keeps markers of one kind, preserving order.
func OnlyCitations(citations []RawCitation, kind CitationKind) []RawCitation {
	out := make([]RawCitation, 0, len(citations))
	for _, citation := range citations {
		if citation.Kind == kind {
			out = append(out, citation)
		}
	}
	return out
}
