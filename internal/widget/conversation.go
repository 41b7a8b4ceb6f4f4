// Package widget is the chat widget core: the conversation of turns, the
// calls to the chat endpoints and the canned FAQ answers.
package widget

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/client"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	"github.com/sunabot/sunabot/backend/internal/markdown"
	"github.com/sunabot/sunabot/backend/internal/model/chat"
)

var (
	ErrEmptyMessage     = errors.New("widget: message is empty")
	ErrUnknownTurn      = errors.New("widget: no bot turn with that id")
	ErrAlreadyContinued = errors.New("widget: turn was already continued")
	ErrNothingToRetry   = errors.New("widget: no previous request")
	ErrUnknownCategory  = errors.New("widget: unknown category")
)

// Texts of the error turns.
const (
	AlertEmptyMessage = "Por favor, escribe tu consulta."
	ErrorConnection   = "Error de conexión con el servidor."
	ErrorProcessing   = "Error al procesar la consulta."
	ErrorContinue     = "Error al continuar la respuesta."

	continuePrompt   = "Continúa la respuesta anterior"
	defaultMaxLength = 1500
)

// Mode selects the endpoint a query goes to.
type Mode int

const (
	// ModeDirect is free typing, answered by /chat_directo.
	ModeDirect Mode = iota
	// ModeLocal answers through /responder.
	ModeLocal
	// ModeCopilot answers through /responder_copilot.
	ModeCopilot
)

// Query is one request of the widget.
type Query struct {
	Message  string
	Mode     Mode
	Kind     string
	Category string
}

// Backend answers the chat endpoints. *client.Client implements it over
// HTTP; the assistant service implements it in process.
type Backend interface {
	ChatDirect(ctx context.Context, req chat.DirectRequest) (chat.Reply, error)
	Respond(ctx context.Context, req chat.QueryRequest) (chat.Reply, error)
	RespondPremium(ctx context.Context, req chat.QueryRequest) (chat.Reply, error)
	Continue(ctx context.Context, req chat.ContinueRequest) (chat.Reply, error)
}

// Speech is the speech control the conversation silences before each send.
type Speech interface {
	StopAll(ctx context.Context) error
}

// Conversation holds the turns of one widget. It is safe for concurrent
// use; requests themselves run outside the lock.
type Conversation struct {
	backend Backend
	speech  Speech
	kb      knowledge.Store
	now     func() time.Time
	logger  zerolog.Logger

	mu        sync.Mutex
	turns     []chat.Turn
	continued map[string]bool
	last      *Query
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithSpeech stops speech on s before every request.
func WithSpeech(s Speech) Option {
	return func(c *Conversation) {
		c.speech = s
	}
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		c.now = now
	}
}

// New starts an empty conversation.
func New(backend Backend, kb knowledge.Store, opts ...Option) *Conversation {
	c := &Conversation{
		backend:   backend,
		kb:        kb,
		now:       time.Now,
		logger:    log.With().Str("component", "widget").Logger(),
		continued: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Turns returns a copy of the conversation so far.
func (c *Conversation) Turns() []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Turn(nil), c.turns...)
}

// Send posts typed text to /chat_directo.
func (c *Conversation) Send(ctx context.Context, message string) (chat.Turn, error) {
	return c.Ask(ctx, Query{Message: message, Mode: ModeDirect})
}

// SendCategory asks about category through /responder. An empty message
// uses the category's first predefined question.
func (c *Conversation) SendCategory(ctx context.Context, category, message string) (chat.Turn, error) {
	if strings.TrimSpace(message) == "" {
		if qs := c.kb.Questions(category); len(qs) > 0 {
			message = qs[0]
		}
	}
	return c.Ask(ctx, Query{Message: message, Mode: ModeLocal, Kind: chat.KindCategory, Category: category})
}

// Ask appends the user turn, calls the endpoint selected by q.Mode and
// appends the bot turn. On failure an error turn offering retry is
// appended instead and returned together with the error.
func (c *Conversation) Ask(ctx context.Context, q Query) (chat.Turn, error) {
	q.Message = strings.TrimSpace(q.Message)
	if q.Message == "" {
		return chat.Turn{}, ErrEmptyMessage
	}
	c.stopSpeech(ctx)

	c.mu.Lock()
	saved := q
	c.last = &saved
	c.appendLocked(chat.Turn{Role: chat.RoleUser, Text: q.Message, HTML: q.Message})
	c.mu.Unlock()

	reply, err := c.call(ctx, q)
	if err != nil {
		c.logger.Warn().Err(err).Str("mode", q.Mode.String()).Msg("query failed")
		return c.append(c.errorTurn(err, ErrorProcessing, q.Category)), err
	}

	return c.append(chat.Turn{
		Role:       chat.RoleBot,
		Text:       reply.Answer,
		HTML:       markdown.Render(reply.Answer),
		Category:   reply.Category,
		Quality:    reply.Quality,
		Incomplete: !IsComplete(reply.Answer),
	}), nil
}

// Retry re-issues the last request from scratch.
func (c *Conversation) Retry(ctx context.Context) (chat.Turn, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return chat.Turn{}, ErrNothingToRetry
	}
	return c.Ask(ctx, *last)
}

// Continue asks /continuar to extend the bot turn turnID. Each turn can be
// continued once; the continuation is a new bot turn.
func (c *Conversation) Continue(ctx context.Context, turnID string) (chat.Turn, error) {
	c.mu.Lock()
	var (
		source chat.Turn
		found  bool
	)
	for _, t := range c.turns {
		if t.ID == turnID && t.Role == chat.RoleBot && !t.Failed {
			source, found = t, true
			break
		}
	}
	switch {
	case !found:
		c.mu.Unlock()
		return chat.Turn{}, ErrUnknownTurn
	case c.continued[turnID]:
		c.mu.Unlock()
		return chat.Turn{}, ErrAlreadyContinued
	}
	c.continued[turnID] = true
	c.mu.Unlock()

	c.stopSpeech(ctx)
	reply, err := c.backend.Continue(ctx, chat.ContinueRequest{
		Message:  continuePrompt,
		Context:  source.Text,
		Category: source.Category,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("turn", turnID).Msg("continue failed")
		turn := chat.Turn{Role: chat.RoleBot, Text: ErrorContinue, HTML: ErrorContinue, Failed: true}
		return c.append(turn), err
	}

	return c.append(chat.Turn{
		Role:     chat.RoleBot,
		Text:     reply.Answer,
		HTML:     markdown.Render(reply.Answer),
		Category: firstNonEmpty(reply.Category, source.Category),
	}), nil
}

// CanContinue reports whether turnID is a bot turn that may still be
// continued.
func (c *Conversation) CanContinue(turnID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.continued[turnID] {
		return false
	}
	for _, t := range c.turns {
		if t.ID == turnID {
			return t.Role == chat.RoleBot && !t.Failed
		}
	}
	return false
}

// CategoryQuestions returns the heading and predefined questions of
// category.
func (c *Conversation) CategoryQuestions(category string) (string, []string, error) {
	cat, ok := c.kb.Category(category)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return knowledge.Title(cat.Name), c.kb.Questions(cat.Name), nil
}

// SelectQuestion answers a predefined question with its canned answer
// without calling the backend. Questions without one get
// knowledge.FallbackAnswer.
func (c *Conversation) SelectQuestion(ctx context.Context, category, question string) (chat.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.Turn{}, ErrEmptyMessage
	}
	c.stopSpeech(ctx)

	answer, _ := c.kb.CannedAnswer(category, question)

	c.mu.Lock()
	c.appendLocked(chat.Turn{Role: chat.RoleUser, Text: question, HTML: question})
	turn := c.appendLocked(chat.Turn{
		Role:     chat.RoleBot,
		Text:     answer,
		HTML:     markdown.Render(answer),
		Category: category,
	})
	c.mu.Unlock()
	return turn, nil
}

func (c *Conversation) call(ctx context.Context, q Query) (chat.Reply, error) {
	switch q.Mode {
	case ModeCopilot:
		return c.backend.RespondPremium(ctx, c.queryRequest(q))
	case ModeLocal:
		return c.backend.Respond(ctx, c.queryRequest(q))
	default:
		return c.backend.ChatDirect(ctx, chat.DirectRequest{Message: q.Message})
	}
}

func (c *Conversation) queryRequest(q Query) chat.QueryRequest {
	kind := q.Kind
	if kind == "" {
		kind = chat.KindGeneral
	}
	return chat.QueryRequest{
		Message:   q.Message,
		Kind:      kind,
		MaxLength: defaultMaxLength,
		Category:  q.Category,
	}
}

// errorTurn builds the error turn of a failed request. HTTP failures are
// reported as connection errors.
func (c *Conversation) errorTurn(err error, fallback, category string) chat.Turn {
	text := fallback
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		text = ErrorConnection
	}
	return chat.Turn{Role: chat.RoleBot, Text: text, HTML: text, Category: category, Failed: true}
}

func (c *Conversation) stopSpeech(ctx context.Context) {
	if c.speech == nil {
		return
	}
	if err := c.speech.StopAll(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("stop speech")
	}
}

func (c *Conversation) append(t chat.Turn) chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(t)
}

func (c *Conversation) appendLocked(t chat.Turn) chat.Turn {
	t.ID = uuid.NewString()
	t.CreatedAt = c.now().UTC()
	c.turns = append(c.turns, t)
	return t
}

var trailingConnector = regexp.MustCompile(`(?i)\b(se|que|la|el|y|o|a|en|de|con|para|por|como|sobre|pero|sin|más|muy|puede|debe|tiene)\s*$`)

// IsComplete reports whether answer looks finished. Short answers, a
// trailing ellipsis or a dangling connector word mark a truncated answer.
func IsComplete(answer string) bool {
	return utf8.RuneCountInString(answer) > 30 &&
		!strings.HasSuffix(answer, "...") &&
		!trailingConnector.MatchString(answer)
}

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeCopilot:
		return "copilot"
	default:
		return "direct"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
