package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-compare-backend/internal/config"
)

type fakeChat struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestOpenAI_Generate(t *testing.T) {
	fc := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  hello  "}}},
	}}
	g := newOpenAI(fc, "", 256, 0.5)

	out, err := g.Generate(context.Background(), Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, defaultOpenAIModel, fc.got.Model)
	assert.Equal(t, 256, fc.got.MaxTokens)
	require.Len(t, fc.got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fc.got.Messages[0].Role)
	assert.Equal(t, "usr", fc.got.Messages[1].Content)
}

func TestOpenAI_Errors(t *testing.T) {
	_, err := newOpenAI(&fakeChat{err: errors.New("401")}, "m", 1, 0).Generate(context.Background(), Prompt{User: "x"})
	assert.Error(t, err)

	_, err = newOpenAI(&fakeChat{}, "m", 1, 0).Generate(context.Background(), Prompt{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type fakeMessages struct {
	got  anthropic.MessageNewParams
	resp *anthropic.Message
	err  error
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.got = body
	return f.resp, f.err
}

func TestAnthropic_Generate(t *testing.T) {
	fm := &fakeMessages{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "part one, "},
		{Type: "tool_use"},
		{Type: "text", Text: "part two"},
	}}}
	g := newAnthropic(fm, "", 0, 0.3)

	out, err := g.Generate(context.Background(), Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", out)
	assert.Equal(t, anthropic.Model(defaultAnthropicModel), fm.got.Model)
	assert.Equal(t, int64(4096), fm.got.MaxTokens)
	require.Len(t, fm.got.System, 1)
	assert.Equal(t, "sys", fm.got.System[0].Text)
}

func TestAnthropic_Errors(t *testing.T) {
	_, err := newAnthropic(&fakeMessages{err: errors.New("overloaded")}, "m", 10, 0).Generate(context.Background(), Prompt{User: "x"})
	assert.Error(t, err)

	_, err = newAnthropic(&fakeMessages{resp: &anthropic.Message{}}, "m", 10, 0).Generate(context.Background(), Prompt{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	out, err := NewStatic("fixed").Generate(ctx, Prompt{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)

	out, err = NewStatic("").Generate(ctx, Prompt{Subjects: []string{"MacBook Air", "Dell XPS 13"}})
	require.NoError(t, err)
	var body struct {
		Product1 struct{ Name string } `json:"product1"`
		Product2 struct{ Name string } `json:"product2"`
		Verdict  string                `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "MacBook Air", body.Product1.Name)
	assert.Equal(t, "Dell XPS 13", body.Product2.Name)
	assert.NotEmpty(t, body.Verdict)

	out, err = NewStatic("").Generate(ctx, Prompt{User: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewStatic("x").Generate(cctx, Prompt{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g := NewStatic("x")
	assert.Same(t, g, WithTimeout(g, 0))
}

func TestInstrumented_PassesThrough(t *testing.T) {
	ok := Instrument(NewStatic("x"), "static")
	out, err := ok.Generate(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	boom := errors.New("boom")
	bad := Instrument(Func(func(context.Context, Prompt) (string, error) { return "", boom }), "test")
	_, err = bad.Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	g, err := New(config.GeneratorConfig{Provider: "static", StaticResponse: "s", Timeout: time.Second})
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "s", out)

	_, err = New(config.GeneratorConfig{Provider: "gemini"})
	assert.Error(t, err)

	g, err = New(config.GeneratorConfig{Provider: "openai", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, g)

	g, err = New(config.GeneratorConfig{Provider: "anthropic", AnthropicAPIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, g)
}
