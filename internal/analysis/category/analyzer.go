// Package category classifies tax queries by keyword and checks they are
// answerable.
package category

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sourcegraph/conc"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sunabot/sunabot/backend/internal/knowledge"
)

// Length bounds of a valid query, in characters.
const (
	MinQueryLength = 3
	MaxQueryLength = 1000
)

const defaultConfidence = 0.5

type rule struct {
	category string
	keywords []string
}

var definitionCues = []string{"qué es", "que es", "define", "definición", "significa", "concepto"}

var definitionRules = []rule{
	{knowledge.DefineSUNAT, []string{"sunat"}},
	{knowledge.RUC, []string{"ruc"}},
	{knowledge.ClaveSOL, []string{"clave sol", "sol"}},
	{knowledge.DefineRenta4, []string{"renta cuarta", "cuarta categoria", "renta 4ta"}},
	{knowledge.DefineRenta5, []string{"renta quinta", "quinta categoria", "renta 5ta"}},
}

// detectRules is ordered; the first category with a match wins.
var detectRules = []rule{
	{knowledge.RUC, []string{"ruc", "registro único", "inscripción ruc", "contribuyente", "alta ruc", "baja ruc"}},
	{knowledge.Declarations, []string{"declaración", "declarar", "djm", "cronograma", "vencimiento", "pdt", "formulario"}},
	{knowledge.Invoicing, []string{"factura", "comprobante", "boleta", "electrónica", "see", "emisión"}},
	{knowledge.ClaveSOL, []string{"clave sol", "contraseña", "acceso", "sol", "representante", "usuario"}},
	{knowledge.Regimes, []string{"régimen", "rus", "rer", "mype", "general", "cambio régimen"}},
}

// scoreRules back the confidence estimate of Categorize.
var scoreRules = []rule{
	{knowledge.RUC, []string{"ruc", "registro único", "inscripción", "contribuyente", "alta ruc", "baja ruc"}},
	{knowledge.Declarations, []string{"declaración", "declarar", "djm", "cronograma", "vencimiento", "pdt"}},
	{knowledge.Invoicing, []string{"factura", "comprobante", "boleta", "electrónica", "see", "emisión"}},
	{knowledge.ClaveSOL, []string{"clave sol", "contraseña", "acceso", "sol", "representante", "usuario"}},
	{knowledge.Regimes, []string{"régimen", "rus", "rer", "mype", "general", "cambio régimen"}},
}

var taxWords = []string{"ruc", "declaración", "factura", "sol", "régimen", "sunat", "tributario"}

// Detect picks the category used to answer message. Definition questions
// about SUNAT or income categories map to their definition category, and
// messages that only mention SUNAT map to SUNAT General.
func Detect(message string) string {
	text := Fold(message)

	if containsAny(text, definitionCues) {
		for _, r := range definitionRules {
			if containsAny(text, r.keywords) {
				return r.category
			}
		}
	}
	for _, r := range detectRules {
		if containsAny(text, r.keywords) {
			return r.category
		}
	}
	if strings.Contains(text, "sunat") {
		return knowledge.SUNATGeneral
	}
	return knowledge.Other
}

// Categorization is a category guess with its confidence.
type Categorization struct {
	Category   string   `json:"categoria"`
	Confidence float64  `json:"confianza"`
	Keywords   []string `json:"palabras_detectadas"`
}

// Categorize scores message against the category keyword lists. Confidence
// is the share of the winning list found in the message.
func Categorize(message string) Categorization {
	text := Fold(message)
	for _, r := range scoreRules {
		var hits []string
		for _, w := range r.keywords {
			if strings.Contains(text, Fold(w)) {
				hits = append(hits, w)
			}
		}
		if len(hits) > 0 {
			return Categorization{
				Category:   r.category,
				Confidence: min(float64(len(hits))/float64(len(r.keywords)), 1),
				Keywords:   hits,
			}
		}
	}
	return Categorization{Category: knowledge.Other, Confidence: defaultConfidence, Keywords: []string{}}
}

// Validation holds the checks a query must pass for the structured endpoint.
type Validation struct {
	NonEmpty   bool `json:"es_valido"`
	LengthOK   bool `json:"longitud_apropiada"`
	HasContent bool `json:"tiene_contenido"`
	TaxRelated bool `json:"es_tributario"`
}

// Valid reports whether every check passed.
func (v Validation) Valid() bool {
	return v.NonEmpty && v.LengthOK && v.HasContent && v.TaxRelated
}

// Validate runs the query checks on message.
func Validate(message string) Validation {
	trimmed := strings.TrimSpace(message)
	n := utf8.RuneCountInString(message)
	return Validation{
		NonEmpty:   trimmed != "",
		LengthOK:   n >= MinQueryLength && n <= MaxQueryLength,
		HasContent: trimmed != "",
		TaxRelated: containsAny(Fold(message), taxWords),
	}
}

// LinkSource provides the official links of a category.
type LinkSource interface {
	Links(category string) []knowledge.Link
}

// Enrichment is the context attached to a categorized query.
type Enrichment struct {
	Links   []knowledge.Link `json:"enlaces_recomendados"`
	Context string           `json:"contexto_categoria"`
}

// Enrich attaches the recommended links of category.
func Enrich(category string, links LinkSource) Enrichment {
	e := Enrichment{Context: fmt.Sprintf("Especialista en %s", category)}
	if links != nil {
		e.Links = links.Links(category)
	}
	return e
}

// Result merges the three analyses of a query.
type Result struct {
	Categorization
	Validation Validation `json:"validaciones"`
	Enrichment
}

// Valid reports whether the analysed query passed validation.
func (r Result) Valid() bool {
	return r.Validation.Valid()
}

// Analyze categorizes, validates and enriches message concurrently.
func Analyze(ctx context.Context, message string, links LinkSource) (Result, error) {
	var (
		res Result
		wg  conc.WaitGroup
	)
	wg.Go(func() { res.Categorization = Categorize(message) })
	wg.Go(func() { res.Validation = Validate(message) })
	wg.Go(func() { res.Enrichment = Enrich(Categorize(message).Category, links) })
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Fold lowercases s and strips diacritics so "Declaración" matches
// "declaracion".
func Fold(s string) string {
	lower := cases.Lower(language.Spanish).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, Fold(w)) {
			return true
		}
	}
	return false
}
