// Package answer implements retrieval-augmented answering: embed the
// question, retrieve the most similar corpus entries, and condition a single
// language-model call on the retrieved context.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"studybase/rag"
	"studybase/rag/embed"
	"studybase/rag/index"
)

// snippetLength bounds the source snippet shown to callers. Truncation is a
// display aid only; the model always receives full texts.
const snippetLength = 200

const systemPrompt = "You are a helpful assistant for a learning platform. " +
	"Use the following pieces of context to answer the user's question. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\nContext: %s"

// ChatModel is the slice of the eino chat model surface the answerer needs:
// one generation per question, no tool use, no streaming.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Turn is one prior exchange in a conversation. Accepted by Answer but not
// yet folded into the prompt.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Answerer wires the embedding engine, the corpus index, and a chat model
// into the question-answering pipeline.
type Answerer struct {
	engine *embed.Engine
	index  index.Index
	model  ChatModel
	topK   int
}

// New creates an answerer. topK <= 0 falls back to the index default.
func New(engine *embed.Engine, idx index.Index, chatModel ChatModel, topK int) *Answerer {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	return &Answerer{engine: engine, index: idx, model: chatModel, topK: topK}
}

// Answer embeds the question, retrieves the top-k similar entries, and asks
// the model once with the retrieved context. The model's raw response is
// returned unmodified together with the ranked source list.
//
// history is currently ignored; multi-turn grounding is a known gap.
func (a *Answerer) Answer(ctx context.Context, question string, history []Turn) (string, []rag.Source, error) {
	_ = history

	vectors, err := a.engine.Embed(ctx, []string{question})
	if err != nil {
		return "", nil, err
	}

	results, err := a.index.Search(ctx, vectors[0], a.topK)
	if err != nil {
		return "", nil, err
	}

	contextParts := make([]string, 0, len(results))
	sources := make([]rag.Source, 0, len(results))
	for _, r := range results {
		contextParts = append(contextParts, r.Entry.Content)
		sources = append(sources, rag.Source{
			Subject:   r.Entry.Subject,
			TopicPath: r.Entry.TopicPath,
			Content:   snippet(r.Entry.Content),
		})
	}

	messages := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(systemPrompt, strings.Join(contextParts, "\n\n"))),
		schema.UserMessage(question),
	}

	response, err := a.model.Generate(ctx, messages)
	if err != nil {
		return "", nil, err
	}

	return response.Content, sources, nil
}

// SeedEntry is one question/answer record to index independently of any
// uploaded document.
type SeedEntry struct {
	Subject   string   `json:"subject"`
	TopicPath []string `json:"topic_path"`
	Content   string   `json:"content"`
}

// Seed embeds and indexes seed entries for the chat corpus. Returns the
// number of entries indexed.
func (a *Answerer) Seed(ctx context.Context, seeds []SeedEntry) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	texts := make([]string, len(seeds))
	for i, s := range seeds {
		texts[i] = s.Content
	}
	vectors, err := a.engine.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]rag.IndexEntry, len(seeds))
	for i, s := range seeds {
		entries[i] = rag.IndexEntry{
			Subject:   s.Subject,
			TopicPath: s.TopicPath,
			Content:   s.Content,
			Vector:    vectors[i],
		}
	}
	if err := a.index.Add(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// snippet trims text for display: the first 200 runes plus an ellipsis when
// the text is longer than that.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
