// Package catalog defines the closed set of functions the assistant may
// invoke. Each entry is a strongly-typed descriptor: parameter rules, the
// resource its permission check targets, and nothing else. Adding a ninth
// function means adding a descriptor here and a handler in the dispatcher's
// handler table; the dispatcher refuses to start if the two drift apart.
package catalog

import (
	"regexp"
	"sort"
)

// ParamType is the JSON type a parameter must carry.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
	TypeArray  ParamType = "array"
)

// Rule is a declarative constraint on one parameter.
type Rule struct {
	Name     string
	Type     ParamType
	Required bool

	// Strings
	MinLen  int
	MaxLen  int
	Pattern *regexp.Regexp

	// Numbers
	Min *float64
	Max *float64

	// Arrays
	MinItems int
	MaxItems int
}

// Resource names the parameter whose value is the resource the caller must
// be authorized for, and the resource's type.
type Resource struct {
	Param string
	Type  string
}

// Function is one catalog entry.
type Function struct {
	Name        string
	Description string
	Rules       []Rule
	Resource    *Resource
}

// Registry is the closed function catalog.
type Registry struct {
	functions map[string]*Function
}

// Get returns the descriptor for a function name.
func (r *Registry) Get(name string) (*Function, bool) {
	f, ok := r.functions[name]
	return f, ok
}

// Names returns all registered function names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered functions.
func (r *Registry) Len() int { return len(r.functions) }

var (
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	tonePattern     = regexp.MustCompile(`^(formal|casual|friendly)$`)
	languagePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)
)

func num(v float64) *float64 { return &v }

func idRule(name string, required bool) Rule {
	return Rule{Name: name, Type: TypeString, Required: required, MinLen: 1, MaxLen: 128, Pattern: idPattern}
}

// NewRegistry builds the catalog. The set is static; there is no way to
// register functions at runtime.
func NewRegistry() *Registry {
	threadResource := &Resource{Param: "threadId", Type: "thread"}

	functions := []*Function{
		{
			Name:        "summarizeThread",
			Description: "Summarize a conversation thread into a short digest.",
			Rules: []Rule{
				idRule("threadId", true),
				{Name: "maxSentences", Type: TypeNumber, Min: num(1), Max: num(10)},
			},
			Resource: threadResource,
		},
		{
			Name:        "searchMessages",
			Description: "Keyword search across the caller's messages.",
			Rules: []Rule{
				{Name: "query", Type: TypeString, Required: true, MinLen: 3, MaxLen: 200},
				idRule("userId", true),
				{Name: "limit", Type: TypeNumber, Min: num(1), Max: num(50)},
			},
		},
		{
			Name:        "semanticSearch",
			Description: "Vector-similarity search across messages.",
			Rules: []Rule{
				{Name: "query", Type: TypeString, Required: true, MinLen: 3, MaxLen: 500},
				{Name: "topK", Type: TypeNumber, Min: num(1), Max: num(20)},
				idRule("threadId", false),
			},
		},
		{
			Name:        "extractActionItems",
			Description: "Extract action items from a thread.",
			Rules: []Rule{
				idRule("threadId", true),
				{Name: "sinceHours", Type: TypeNumber, Min: num(1), Max: num(168)},
			},
			Resource: threadResource,
		},
		{
			Name:        "analyzeSentiment",
			Description: "Classify the overall tone of a thread.",
			Rules: []Rule{
				idRule("threadId", true),
				{Name: "messageIds", Type: TypeArray, MinItems: 1, MaxItems: 100},
			},
			Resource: threadResource,
		},
		{
			Name:        "draftReply",
			Description: "Draft a reply to the latest message in a thread.",
			Rules: []Rule{
				idRule("threadId", true),
				{Name: "tone", Type: TypeString, Pattern: tonePattern},
				{Name: "maxWords", Type: TypeNumber, Min: num(10), Max: num(300)},
			},
			Resource: threadResource,
		},
		{
			Name:        "translateMessage",
			Description: "Translate a single message to a target language.",
			Rules: []Rule{
				idRule("messageId", true),
				{Name: "targetLanguage", Type: TypeString, Required: true, Pattern: languagePattern},
			},
			Resource: &Resource{Param: "messageId", Type: "message"},
		},
		{
			Name:        "getConversationStats",
			Description: "Message and participant statistics for a thread.",
			Rules: []Rule{
				idRule("threadId", true),
				{Name: "days", Type: TypeNumber, Min: num(1), Max: num(90)},
			},
			Resource: threadResource,
		},
	}

	byName := make(map[string]*Function, len(functions))
	for _, f := range functions {
		byName[f.Name] = f
	}
	return &Registry{functions: byName}
}
