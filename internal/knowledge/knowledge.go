// Package knowledge holds the static SUNABOT content: the category catalog,
// official links, canned FAQ answers and the specialist answers served
// without a language model.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names.
const (
	RUC           = "RUC"
	Declarations  = "Declaraciones"
	Invoicing     = "Facturación"
	ClaveSOL      = "Clave SOL"
	Regimes       = "Regímenes"
	Other         = "Otros"
	SUNATGeneral  = "SUNAT General"
	DefineSUNAT   = "Definición SUNAT"
	DefineRenta4  = "Definición Renta 4ta"
	DefineRenta5  = "Definición Renta 5ta"
	generalTopic  = "general"
	questionTitle = "Preguntas frecuentes sobre %s:"
)

// FallbackAnswer is shown for a FAQ question without a canned answer.
const FallbackAnswer = "Lo siento, no tengo una respuesta predeterminada para esa pregunta. Por favor, escribe tu consulta en el chat para obtener una respuesta personalizada."

var ErrUnknownLink = errors.New("knowledge: unknown link id")

//go:embed sunabot.yaml
var embedded []byte

// Link is an official SUNAT page.
type Link struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// FAQ is a predefined question and its canned answer. Answer may be empty.
type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer,omitempty"`
}

// Topic is a specialist answer selected by keywords within a category.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// Category groups the FAQ, links and specialist topics of one subject.
type Category struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	LinkIDs     []string `yaml:"links" json:"-"`
	FAQ         []FAQ    `yaml:"faq" json:"faq"`
	Topics      []Topic  `yaml:"topics" json:"-"`
	Links       []Link   `yaml:"-" json:"links"`
}

type definition struct {
	Category string `yaml:"category"`
	Answer   string `yaml:"answer"`
}

type glossaryEntry struct {
	Terms   []string `yaml:"terms"`
	Exclude []string `yaml:"exclude"`
	Answer  string   `yaml:"answer"`
}

type document struct {
	Links       []Link          `yaml:"links"`
	Categories  []Category      `yaml:"categories"`
	Definitions []definition    `yaml:"definitions"`
	Glossary    []glossaryEntry `yaml:"glossary"`
}

// Store exposes the knowledge base to handlers and services.
type Store interface {
	Categories() []Category
	Category(name string) (Category, bool)
	Questions(category string) []string
	CannedAnswer(category, question string) (string, bool)
	Links(category string) []Link
	AllLinks() []Link
	Specialized(message, category string) string
}

// MemoryStore implements Store over parsed YAML.
type MemoryStore struct {
	links       []Link
	categories  []Category
	definitions map[string]string
	glossary    []glossaryEntry
}

// Load parses the embedded knowledge base.
func Load() (*MemoryStore, error) {
	return Parse(embedded)
}

// MustLoad is Load for program start-up.
func MustLoad() *MemoryStore {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Parse builds a MemoryStore from YAML data.
func Parse(data []byte) (*MemoryStore, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge: %w", err)
	}

	byID := make(map[string]Link, len(doc.Links))
	for _, l := range doc.Links {
		byID[l.ID] = l
	}
	for i := range doc.Categories {
		c := &doc.Categories[i]
		for _, id := range c.LinkIDs {
			l, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("category %s: %w %q", c.Name, ErrUnknownLink, id)
			}
			c.Links = append(c.Links, l)
		}
	}

	defs := make(map[string]string, len(doc.Definitions))
	for _, d := range doc.Definitions {
		defs[d.Category] = d.Answer
	}

	return &MemoryStore{
		links:       doc.Links,
		categories:  doc.Categories,
		definitions: defs,
		glossary:    doc.Glossary,
	}, nil
}

// Categories returns the catalog in display order.
func (s *MemoryStore) Categories() []Category {
	out := make([]Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = c.clone()
	}
	return out
}

// Category looks up a category by name, ignoring case.
func (s *MemoryStore) Category(name string) (Category, bool) {
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.clone(), true
		}
	}
	return Category{}, false
}

// Questions lists the predefined questions of category.
func (s *MemoryStore) Questions(category string) []string {
	c, ok := s.Category(category)
	if !ok {
		return nil
	}
	out := make([]string, len(c.FAQ))
	for i, f := range c.FAQ {
		out[i] = f.Question
	}
	return out
}

// CannedAnswer returns the canned answer of question in category. When there
// is none it returns FallbackAnswer and false.
func (s *MemoryStore) CannedAnswer(category, question string) (string, bool) {
	c, ok := s.Category(category)
	if !ok {
		return FallbackAnswer, false
	}
	q := strings.TrimSpace(question)
	for _, f := range c.FAQ {
		if f.Question == q && f.Answer != "" {
			return f.Answer, true
		}
	}
	return FallbackAnswer, false
}

// Links returns the official links recommended for category. Unknown
// categories get the links of Otros.
func (s *MemoryStore) Links(category string) []Link {
	c, ok := s.Category(category)
	if !ok {
		c, _ = s.Category(Other)
	}
	return c.Links
}

// AllLinks returns every official link.
func (s *MemoryStore) AllLinks() []Link {
	return append([]Link(nil), s.links...)
}

// Title is the heading shown above the FAQ of category.
func Title(category string) string {
	return fmt.Sprintf(questionTitle, category)
}

// Specialized answers message without a language model. Definition
// categories map straight to their answer; definition questions get a
// glossary entry; otherwise the topic of category whose keywords match wins,
// falling back to the category's general topic.
func (s *MemoryStore) Specialized(message, category string) string {
	if answer, ok := s.definitions[category]; ok {
		return answer
	}

	lower := strings.ToLower(message)
	if IsDefinitionQuestion(lower) {
		for _, g := range s.glossary {
			if containsAny(lower, g.Terms) && !containsAny(lower, g.Exclude) {
				return g.Answer
			}
		}
	}

	c, ok := s.Category(category)
	if !ok {
		c, _ = s.Category(Other)
	}
	var general string
	for _, t := range c.Topics {
		if t.Name == generalTopic {
			general = t.Answer
			continue
		}
		if containsAny(lower, t.Keywords) {
			return t.Answer
		}
	}
	return general
}

var definitionCues = []string{
	"qué es", "que es", "define", "significa", "explicame", "explícame",
	"concepto", "definición", "definicion", "información sobre",
}

// IsDefinitionQuestion reports whether message asks what something is.
func IsDefinitionQuestion(message string) bool {
	return containsAny(strings.ToLower(message), definitionCues)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (c Category) clone() Category {
	c.LinkIDs = append([]string(nil), c.LinkIDs...)
	c.FAQ = append([]FAQ(nil), c.FAQ...)
	c.Topics = append([]Topic(nil), c.Topics...)
	c.Links = append([]Link(nil), c.Links...)
	return c
}
