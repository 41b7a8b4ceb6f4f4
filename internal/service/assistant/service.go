// Package assistant answers SUNAT tax queries for the chat endpoints.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/analysis/category"
	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	"github.com/sunabot/sunabot/backend/internal/markdown"
	"github.com/sunabot/sunabot/backend/internal/model/chat"
)

var ErrEmptyMessage = errors.New("mensaje is required")

// DirectCategory tags answers of /chat_directo.
const DirectCategory = "Chat Directo"

// Processing and technique labels reported with each reply.
const (
	processingDirect     = "ia_directa"
	processingDemo       = "demo"
	processingGeneral    = "ia_general"
	processingCategory   = "ia_categoria"
	processingSpecialist = "especialista"
	processingStructured = "estructurado"

	techniqueDirect     = "Respuesta libre con IA"
	techniqueDemo       = "Modo Demostración"
	techniqueCoT        = "Cadena de Pensamiento (CoT)"
	techniqueSystem     = "Sistema de Mensajes"
	techniqueSpecialist = "Especialista SUNAT"
	techniqueStructured = "Análisis paralelo + especialista"

	QualityPremium = "premium"
	QualityDemo    = "demo"
)

// InvalidQueryError reports a query rejected by the structured endpoint.
type InvalidQueryError struct {
	Validation category.Validation
}

func (e *InvalidQueryError) Error() string {
	return "query is not a valid tax question"
}

// StructuredReply is the answer of /responder_estructurado.
type StructuredReply struct {
	Answer      string              `json:"respuesta"`
	Category    string              `json:"categoria"`
	Confidence  float64             `json:"confianza"`
	Links       []string            `json:"links_incluidos"`
	Technique   string              `json:"tecnica_usada"`
	AI          bool                `json:"es_ia"`
	Processing  string              `json:"tipo_procesamiento"`
	Analysis    category.Result     `json:"procesamiento_paralelo"`
	Validations category.Validation `json:"validaciones"`
	Metadata    category.Enrichment `json:"metadata"`
}

// Service answers queries with a language model when one is configured and
// with the knowledge base otherwise.
type Service struct {
	completer Completer
	kb        knowledge.Store
	prompts   prompter
	cfg       config.AIConfig
	logger    zerolog.Logger
}

// NewService wires the assistant. completer may be nil, which leaves the
// service in demo mode.
func NewService(completer Completer, kb knowledge.Store, cfg config.AIConfig) *Service {
	return &Service{
		completer: completer,
		kb:        kb,
		prompts:   prompter{kb: kb},
		cfg:       cfg,
		logger:    log.With().Str("component", "assistant").Logger(),
	}
}

// ModelReady reports whether a language model backs the service.
func (s *Service) ModelReady() bool {
	return s.completer != nil
}

// ChatDirect answers a free-form chat message.
func (s *Service) ChatDirect(ctx context.Context, req chat.DirectRequest) (chat.Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return chat.Reply{}, ErrEmptyMessage
	}

	if s.completer == nil {
		return chat.Reply{
			Answer:     markdown.Autolink(s.prompts.demo(message)),
			Category:   DirectCategory,
			Quality:    QualityDemo,
			Processing: processingDemo,
			Technique:  techniqueDemo,
		}, nil
	}

	p := s.prompts.direct(message)
	p.MaxTokens = s.cfg.DirectMaxTokens
	text, err := s.complete(ctx, DirectCategory, p)
	if err != nil {
		return chat.Reply{}, err
	}

	answer := fmt.Sprintf("**🤖 Respuesta de SUNABOT**\n\n%s\n\n---\n*Respuesta generada con IA*", text)
	return chat.Reply{
		Answer:     markdown.Autolink(answer),
		Category:   DirectCategory,
		Quality:    QualityPremium,
		Processing: processingDirect,
		Technique:  techniqueDirect,
		AI:         true,
	}, nil
}

// Respond answers /responder. Kind "general" detects the category and uses a
// specialist prompt, or chain of thought when nothing matched. Kind
// "categoria" uses the specialist prompt of the requested category. Without
// a model the specialist answer of the knowledge base is returned.
func (s *Service) Respond(ctx context.Context, req chat.QueryRequest) (chat.Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return chat.Reply{}, ErrEmptyMessage
	}

	detected := category.Detect(message)
	if s.completer == nil {
		cat := firstNonEmpty(req.Category, detected)
		return s.specialistReply(message, cat, QualityDemo), nil
	}

	var (
		p          Prompt
		cat        string
		processing string
		technique  string
	)
	switch req.Kind {
	case chat.KindCategory:
		cat = firstNonEmpty(req.Category, detected)
		p = s.prompts.category(cat, message)
		processing, technique = processingCategory, techniqueSystem
	default:
		cat = detected
		processing = processingGeneral
		if cat == knowledge.Other {
			p = s.prompts.chainOfThought(message)
			technique = techniqueCoT
		} else {
			p = s.prompts.category(cat, message)
			technique = fmt.Sprintf("Sistema especializado + CoT (%s)", cat)
		}
	}
	p.MaxTokens = maxTokens(req.MaxLength)

	text, err := s.complete(ctx, cat, p)
	if err != nil {
		return chat.Reply{}, err
	}
	return chat.Reply{
		Answer:     markdown.Autolink(text),
		Category:   cat,
		Processing: processing,
		Technique:  technique,
		AI:         true,
	}, nil
}

// RespondPremium answers /responder_copilot with the curated specialist
// answer of the requested or detected category.
func (s *Service) RespondPremium(_ context.Context, req chat.QueryRequest) (chat.Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return chat.Reply{}, ErrEmptyMessage
	}

	cat := firstNonEmpty(req.Category, category.Detect(message))
	reply := s.specialistReply(message, cat, QualityPremium)
	reply.Prompt = s.prompts.premium(cat, message)
	return reply, nil
}

// Continue extends a previous answer for /continuar.
func (s *Service) Continue(ctx context.Context, req chat.ContinueRequest) (chat.Reply, error) {
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Context) == "" {
		return chat.Reply{}, ErrEmptyMessage
	}

	cat := firstNonEmpty(req.Category, knowledge.Other)
	if s.completer == nil {
		return chat.Reply{
			Answer:     markdown.Autolink(s.prompts.demoContinuation(cat)),
			Category:   cat,
			Quality:    QualityDemo,
			Processing: processingDemo,
			Technique:  techniqueDemo,
		}, nil
	}

	p := s.prompts.continuation(req.Context, req.Message)
	p.MaxTokens = s.cfg.ContinueMaxTokens

	text, err := s.complete(ctx, cat, p)
	if err != nil {
		return chat.Reply{}, err
	}
	return chat.Reply{
		Answer:   markdown.Autolink(text),
		Category: cat,
		AI:       true,
	}, nil
}

// RespondStructured validates and analyses the query in parallel, then
// answers it like a category query and lists the links it cites.
func (s *Service) RespondStructured(ctx context.Context, req chat.QueryRequest) (StructuredReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return StructuredReply{}, ErrEmptyMessage
	}

	analysis, err := category.Analyze(ctx, message, s.kb)
	if err != nil {
		return StructuredReply{}, err
	}
	if !analysis.Valid() {
		return StructuredReply{}, &InvalidQueryError{Validation: analysis.Validation}
	}

	cat := firstNonEmpty(req.Category, analysis.Category)
	var (
		raw string
		ai  bool
	)
	if s.completer != nil {
		p := s.prompts.category(cat, message)
		p.MaxTokens = maxTokens(req.MaxLength)
		if raw, err = s.complete(ctx, cat, p); err != nil {
			return StructuredReply{}, err
		}
		ai = true
	} else {
		raw = s.kb.Specialized(message, cat)
	}

	links := markdown.ExtractLinks(raw)
	if links == nil {
		links = []string{}
	}
	return StructuredReply{
		Answer:      markdown.Autolink(raw),
		Category:    cat,
		Confidence:  analysis.Confidence,
		Links:       links,
		Technique:   techniqueStructured,
		AI:          ai,
		Processing:  processingStructured,
		Analysis:    analysis,
		Validations: analysis.Validation,
		Metadata:    analysis.Enrichment,
	}, nil
}

func (s *Service) specialistReply(message, cat, quality string) chat.Reply {
	return chat.Reply{
		Answer:     markdown.Autolink(s.kb.Specialized(message, cat)),
		Category:   cat,
		Quality:    quality,
		Processing: processingSpecialist,
		Technique:  techniqueSpecialist,
	}
}

func (s *Service) complete(ctx context.Context, cat string, p Prompt) (string, error) {
	text, err := s.completer.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("complete %s query: %w", cat, err)
	}
	text = strings.TrimSpace(text)
	s.logger.Info().Str("category", cat).Int("length", len(text)).Msg("generated response")
	return text, nil
}

func maxTokens(requested int) int {
	if requested <= 0 {
		return chat.DefaultMaxLength
	}
	return min(max(requested, chat.MinMaxLength), chat.MaxMaxLength)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
