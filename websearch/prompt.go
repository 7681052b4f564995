package websearch

// SearchSummaryPrompt is the system prompt for the search-classification
// call. The model answers with the tagged decision format ExtractDecision
// understands.
const SearchSummaryPrompt = `You will be given a conversation and must decide
whether answering the last question requires a web search.

Respond using exactly this format:

<question>a standalone, self-contained search query</question>

Rules:
- If the question is a greeting, a writing task, or otherwise answerable
  without current external information, respond with
  <question>not_needed</question>.
- If the user asks to summarize or process specific web pages, respond with
  <question>summarize</question> followed by
  <links>
  one URL per line, copied from the conversation
  </links>
- Otherwise rephrase the last question into a standalone search query that
  includes any context it depends on (resolve pronouns and references to
  earlier turns).`
