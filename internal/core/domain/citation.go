package domain

const (
	DenialMessage         = "I'm sorry, but I can only assist with questions related to VinUni-related topics."
	GenericErrorMessage   = "Sorry, something went wrong while looking up an answer. Please try again later."
	UnableToSearchMessage = "I'm unable to search the VinUni knowledge base right now. Please try again later."
	EmptyQuestionMessage  = "Please enter a question about VinUni."
)

// EnrichedCitation is a user-facing citation. URL is nil when no reference
// link is known.
type EnrichedCitation struct {
	Title string  `json:"title"`
	URL   *string `json:"url"`
}

type ResolutionResult struct {
	Answer    string             `json:"answer"`
	Citations []EnrichedCitation `json:"citations"`
}

func TextResult(answer string) ResolutionResult {
	return ResolutionResult{
		Answer:    answer,
		Citations: []EnrichedCitation{},
	}
}
