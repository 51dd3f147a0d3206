package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client against any OpenAI-compatible completions
// API (OpenAI itself, or a local endpoint such as llama.cpp or Ollama when
// pointed at its base URL).
type OpenAIClient struct {
	client  openai.Client
	model   string
	apiKey  string
	baseURL string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// openaiSession is the concrete model-session handle: the accumulated message
// history for one conversation context. Completed turns are committed to the
// history so later turns see them; a failed or cancelled turn commits nothing.
type openaiSession struct {
	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

func (c *OpenAIClient) CreateSession(ctx context.Context, instructions string) (Session, error) {
	if !c.IsModelAvailable() {
		return nil, fmt.Errorf("create model session: %s", c.AvailabilityDescription())
	}
	s := &openaiSession{}
	if strings.TrimSpace(instructions) != "" {
		s.history = append(s.history, openai.SystemMessage(instructions))
	}
	return s, nil
}

func (c *OpenAIClient) StreamResponse(ctx context.Context, sess Session, prompt string, opts Options) (<-chan Chunk, error) {
	s, err := c.sessionOf(sess)
	if err != nil {
		return nil, err
	}

	params := c.buildParams(s, prompt, opts)
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)

		var acc strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			acc.WriteString(delta)
			ch <- Chunk{Text: acc.String()}
		}
		if err := stream.Err(); err != nil {
			ch <- Chunk{Text: acc.String(), Err: fmt.Errorf("stream response: %w", err)}
			return
		}
		s.commitTurn(prompt, acc.String())
	}()
	return ch, nil
}

func (c *OpenAIClient) Respond(ctx context.Context, sess Session, prompt string, opts Options) (string, error) {
	s, err := c.sessionOf(sess)
	if err != nil {
		return "", err
	}

	params := c.buildParams(s, prompt, opts)
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("respond: empty completion")
	}

	text := completion.Choices[0].Message.Content
	s.commitTurn(prompt, text)
	return text, nil
}

func (c *OpenAIClient) IsModelAvailable() bool {
	return c.apiKey != "" || c.baseURL != ""
}

func (c *OpenAIClient) AvailabilityDescription() string {
	if c.IsModelAvailable() {
		return "Available"
	}
	return "No API key set (export OPENAI_API_KEY) and no local endpoint configured (--base-url)"
}

func (c *OpenAIClient) sessionOf(sess Session) (*openaiSession, error) {
	s, ok := sess.(*openaiSession)
	if !ok || s == nil {
		return nil, fmt.Errorf("invalid model session handle")
	}
	return s, nil
}

func (c *OpenAIClient) buildParams(s *openaiSession, prompt string, opts Options) openai.ChatCompletionNewParams {
	s.mu.Lock()
	msgs := make([]openai.ChatCompletionMessageParamUnion, len(s.history), len(s.history)+1)
	copy(msgs, s.history)
	s.mu.Unlock()

	msgs = append(msgs, openai.UserMessage(prompt))
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(opts.Temperature),
	}
}

func (s *openaiSession) commitTurn(prompt, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, openai.UserMessage(prompt), openai.AssistantMessage(reply))
}
