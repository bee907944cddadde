package fault

import "fmt"

// actionPhrases describes what each catalog function was trying to do, in
// words that fit the sentence "Sorry, I couldn't <phrase>."
var actionPhrases = map[string]string{
	"summarizeThread":      "summarize the conversation",
	"searchMessages":       "search your messages",
	"semanticSearch":       "find related messages",
	"extractActionItems":   "pull out the action items",
	"analyzeSentiment":     "read the tone of the conversation",
	"draftReply":           "draft a reply",
	"translateMessage":     "translate the message",
	"getConversationStats": "gather the conversation statistics",
}

var suggestions = map[Code]string{
	CodeInvalidFunction:    "That capability isn't available.",
	CodeInvalidParameters:  "Try rephrasing your request with a bit more detail.",
	CodePermissionDenied:   "You don't have access to that conversation.",
	CodeTimeout:            "It took too long, please try again.",
	CodeServiceUnavailable: "The service is temporarily unavailable; please try again shortly.",
	CodeInternalError:      "Something went wrong on our side. Please try again.",
}

// FallbackSentence renders a failure as conversational text: a per-function
// action phrase plus a per-code suggestion. Used when the caller needs a
// sentence instead of a structured error. Never includes raw error content.
func FallbackSentence(function string, code Code) string {
	phrase, ok := actionPhrases[function]
	if !ok {
		phrase = "complete that request"
	}
	suggestion, ok := suggestions[code]
	if !ok {
		suggestion = suggestions[CodeInternalError]
	}
	return fmt.Sprintf("Sorry, I couldn't %s. %s", phrase, suggestion)
}
