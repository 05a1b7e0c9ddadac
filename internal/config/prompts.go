package config

// PromptSet holds the templates of one strategy. Templates use text/template syntax
// with the fields AssistantName, Question, Context and History.
type PromptSet struct {
	System           string `yaml:"system"`
	SystemUngrounded string `yaml:"system_ungrounded"`
	User             string `yaml:"user"`
	UserUngrounded   string `yaml:"user_ungrounded"`
}

// PromptConfig holds every prompt template. It is built once at startup and never mutated.
type PromptConfig struct {
	AssistantName string    `yaml:"assistant_name"`
	Plain         PromptSet `yaml:"plain"`
	Data          PromptSet `yaml:"data"`
	Doc           PromptSet `yaml:"doc"`
	GPTs          PromptSet `yaml:"gpts"`
	Web           PromptSet `yaml:"web"`
	// Intent, Rewrite and Condense drive the query rewriter. Intent and Rewrite may
	// reference Today; Rewrite may also reference Intent.
	Intent   string `yaml:"intent"`
	Rewrite  string `yaml:"rewrite"`
	Condense string `yaml:"condense"`
}

const baseSystem = `You are {{.AssistantName}}. Answer the user's questions politely and accurately.`

const citationRule = `Cite your sources at the end of the answer using exactly this format: {%citation items=[{name:"NAME",id:"ID"}]/%}
Use the document name for NAME and the document id for ID.`

var defaultPrompts = PromptConfig{
	AssistantName: "groundchat",
	Plain: PromptSet{
		System:           baseSystem,
		SystemUngrounded: baseSystem,
		User:             "{{.Question}}",
		UserUngrounded:   "{{.Question}}",
	},
	Data: PromptSet{
		System: baseSystem + `
Keep answers concise and clear. Follow these rules:
1. Use only the information in the provided documents.
2. If the documents do not cover the question, say "That information is not contained in the documents."
3. ` + citationRule + `
4. Do not fill gaps with guesses or general knowledge.`,
		SystemUngrounded: baseSystem + `
No document information was found for this question. Say so briefly.
Do not cite anything and do not guess.`,
		User: `Question: {{.Question}}

Reference documents:
{{.Context}}

Answer based on the documents above.
If the documents do not contain the information, say "That information is not contained in the documents."`,
		UserUngrounded: `Question: {{.Question}}

No document information was found for this question.`,
	},
	Doc: PromptSet{
		System: baseSystem,
		SystemUngrounded: baseSystem + `
No matching documents were found. Tell the user briefly and do not guess.`,
		User: `- Write the final answer based on the document excerpts below.
- If you do not know the answer, say only that you do not know. Do not guess.
- Make the answer as detailed as the excerpts allow.
- Always end with the citation and do not put a period after it.
- ` + citationRule + `
- Convert any HTML links (<a href>) in the answer to Markdown links [text](URL).
----------------
context:
{{.Context}}
----------------
question: {{.Question}}`,
		UserUngrounded: `question: {{.Question}}

No matching documents were found.`,
	},
	GPTs: PromptSet{
		System: baseSystem,
		SystemUngrounded: baseSystem + `
No matching FAQ entries were found. Tell the user briefly and do not guess.`,
		User: `- Write the final answer based on the document excerpts below.
- If you do not know the answer, say only that you do not know. Do not guess.
- Make the answer as detailed as the excerpts allow.
- Always end with the citation and do not put a period after it.
- ` + citationRule + `
----------------
context:
{{.Context}}
----------------
question: {{.Question}}`,
		UserUngrounded: `question: {{.Question}}

No matching FAQ entries were found.`,
	},
	Web: PromptSet{
		System: baseSystem + ` Follow these instructions:
1. Answer honestly and accurately, taking the conversation into account.
2. Use the web search results as reference and prefer reliable information.
3. End the answer with a "### References" heading followed by the sources as Markdown links:
   - [Title](URL)
4. Do not contradict earlier parts of the conversation.
5. Never use HTML tags; always use Markdown.`,
		SystemUngrounded: baseSystem + `
The web search returned no usable results. Answer from general knowledge, say that no sources were found, and do not invent references.`,
		User: `Conversation so far:
{{.History}}

Latest question: {{.Question}}

Web search results:
{{.Context}}

Using the conversation and the search results above, write a comprehensive, informative answer to the latest question.

Always include a Markdown reference list in this form:

### References
- [Title 1](URL1)
- [Title 2](URL2)`,
		UserUngrounded: `Conversation so far:
{{.History}}

Latest question: {{.Question}}`,
	},
	Intent: `Today is {{.Today}}. Analyze the user's latest message in the context of the conversation.
Reply with a JSON object only, using these keys:
{"core_question": string, "time_context": {"kind": "latest" | "specific_year" | "unspecified", "year": number}, "implicit_context": string, "required_info": [string]}
Use "specific_year" with "year" only when the user names a year.`,
	Rewrite: `Today is {{.Today}}. You turn a user's question into one concise web search query.
Intent analysis:
{{.Intent}}
Return only the query, without quotes or explanation.`,
	Condense: `You optimize search queries for a document search.
- If the question is vague, produce a more specific query suited to search.
- If the question is already specific, return it unchanged.
- Keep the query short and include the important keywords, adding common synonyms and abbreviations.
- Return only the query, without explanation.`,
}

// DefaultPrompts returns a copy of the built-in prompt templates.
func DefaultPrompts() PromptConfig {
	return defaultPrompts
}

func applyPromptDefaults(p *PromptConfig) {
	if p.AssistantName == "" {
		p.AssistantName = defaultPrompts.AssistantName
	}
	fillSet(&p.Plain, defaultPrompts.Plain)
	fillSet(&p.Data, defaultPrompts.Data)
	fillSet(&p.Doc, defaultPrompts.Doc)
	fillSet(&p.GPTs, defaultPrompts.GPTs)
	fillSet(&p.Web, defaultPrompts.Web)
	if p.Intent == "" {
		p.Intent = defaultPrompts.Intent
	}
	if p.Rewrite == "" {
		p.Rewrite = defaultPrompts.Rewrite
	}
	if p.Condense == "" {
		p.Condense = defaultPrompts.Condense
	}
}

func fillSet(dst *PromptSet, def PromptSet) {
	if dst.System == "" {
		dst.System = def.System
	}
	if dst.SystemUngrounded == "" {
		dst.SystemUngrounded = def.SystemUngrounded
	}
	if dst.User == "" {
		dst.User = def.User
	}
	if dst.UserUngrounded == "" {
		dst.UserUngrounded = def.UserUngrounded
	}
}
