// Package gateway builds chat-completion requests from conversation
// history plus the current screen frame, calls the model backend, and
// parses the structured action out of the response.
//
// The backend speaks the OpenAI-compatible chat-completions shape, so
// the openai-go SDK is used with a custom base URL and bearer key.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/droidpilot/droidpilot/internal/action"
	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/message"
	"github.com/droidpilot/droidpilot/internal/perception"
	"github.com/droidpilot/droidpilot/internal/screenshot"
)

// Fixed generation parameters. These are configuration constants, not
// renegotiated per call.
const (
	maxTokens        = 3000
	temperature      = 0.0
	topP             = 0.85
	frequencyPenalty = 0.2
)

// ErrorKind classifies gateway failures so the session loop can apply
// different retry policy to each.
type ErrorKind int

const (
	// KindNetwork: transport or server failure, retryable.
	KindNetwork ErrorKind = iota
	// KindAuth: the backend rejected the credentials.
	KindAuth
	// KindMalformed: the response carried no recognizable action.
	KindMalformed
	// KindEncoding: the frame could not be encoded for the request.
	// Local, so retrying the same frame cannot recover.
	KindEncoding
)

// Error is a classified gateway failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Decision is the parsed outcome of one model call.
type Decision struct {
	Action   action.Descriptor
	Thinking string
	Raw      string
}

// Client calls the model backend.
type Client struct {
	api    openai.Client
	model  string
	encode screenshot.EncodeOptions
}

// New creates a gateway client from settings. Extra request options are
// applied after the configured key and base URL; tests use them to swap
// the HTTP transport.
func New(cfg *config.Settings, opts ...option.RequestOption) *Client {
	return &Client{
		api: openai.NewClient(append([]option.RequestOption{
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		}, opts...)...),
		model: cfg.Model,
		encode: screenshot.EncodeOptions{
			Compress: cfg.Compression.Enabled,
			Quality:  cfg.Compression.Quality,
		},
	}
}

// RequestNextAction sends the role-tagged history plus the current frame
// and parses the model's reply into an action descriptor. An unparseable
// reply is a Malformed error, never a silent no-op.
func (c *Client) RequestNextAction(ctx context.Context, history []message.Message, frame *perception.Frame) (*Decision, error) {
	enc, err := screenshot.Encode(frame, c.encode)
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Err: err}
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(systemPrompt(frame.Width, frame.Height)))

	for _, m := range history {
		switch m.Role {
		case message.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case message.RoleAssistant:
			content := m.Content
			if m.Action != "" {
				content = fmt.Sprintf("%s\n%s", m.Content, m.Action)
			}
			msgs = append(msgs, openai.AssistantMessage(content))
		}
	}

	// The current frame rides on a final user turn.
	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
					{
						OfImageURL: &openai.ChatCompletionContentPartImageParam{
							ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
								URL: enc.DataURI(),
							},
						},
					},
					{
						OfText: &openai.ChatCompletionContentPartTextParam{
							Text: "This is the current screen. Decide the next action.",
						},
					},
				},
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:            c.model,
		Messages:         msgs,
		MaxTokens:        openai.Int(maxTokens),
		Temperature:      openai.Float(temperature),
		TopP:             openai.Float(topP),
		FrequencyPenalty: openai.Float(frequencyPenalty),
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: KindMalformed, Err: fmt.Errorf("response carried no choices")}
	}
	content := resp.Choices[0].Message.Content

	log.Logger().Debug("model response",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	desc, thinking, err := action.Parse(content)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Err: err}
	}

	return &Decision{Action: desc, Thinking: thinking, Raw: content}, nil
}

// classifyAPIError separates auth rejections from transport failures.
func classifyAPIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 401 || apierr.StatusCode == 403 {
			return &Error{Kind: KindAuth, Err: err}
		}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// systemPrompt describes the device and the action grammar the model
// must reply in.
func systemPrompt(width, height int) string {
	return fmt.Sprintf(`You are a mobile device operator. The screen is %dx%d pixels; coordinates are absolute with the origin at the top-left.

On every turn reply with your reasoning wrapped in <think>...</think>, followed by exactly one action:

  tap(x, y)                          tap the screen at the point
  long_press(x, y)                   press and hold at the point
  swipe(x1, y1, x2, y2, durationMs)  drag between the points
  type(target="label", text="...")   type into the element labeled "label"
  back()                             press the system back button
  home()                             go to the home screen
  finish(message="...")              the task is complete

Only issue finish() when the user's task is done or cannot proceed.`, width, height)
}
