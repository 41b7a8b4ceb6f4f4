package assistant

import (
	"fmt"
	"strings"

	"github.com/sunabot/sunabot/backend/internal/knowledge"
)

var (
	// categoryStop ends generations that start echoing a new turn.
	categoryStop = []string{"</s>", "### Consulta", "### Usuario:", "Human:", "Assistant:"}
	// generalStop is stricter: any new heading ends the answer.
	generalStop = []string{"</s>", "### Consulta", "### Usuario:", "###"}
)

// links quoted by the general purpose prompts
var generalLinkIDs = []string{"consulta_ruc", "portal_sol", "verificar_cpe", "cronograma", "recuperar_clave"}

type specialist struct {
	title string
	scope string
}

var specialists = map[string]specialist{
	knowledge.RUC:          {"RUC", "RUC"},
	knowledge.Declarations: {"Declaraciones", "declaraciones tributarias"},
	knowledge.Invoicing:    {"Facturación", "facturación y comprobantes"},
	knowledge.ClaveSOL:     {"Clave SOL", "Clave SOL y servicios digitales"},
	knowledge.Regimes:      {"Regímenes", "regímenes tributarios"},
	knowledge.Other:        {"General", "consultas tributarias"},
}

type prompter struct {
	kb knowledge.Store
}

// category is the specialist prompt used for category buttons and for
// general queries that map to a known category.
func (p prompter) category(category, message string) Prompt {
	sp, ok := specialists[category]
	if !ok {
		sp = specialists[knowledge.Other]
	}
	links := p.kb.Links(category)

	var b strings.Builder
	fmt.Fprintf(&b, "### SUNABOT - Especialista %s\n", sp.title)
	fmt.Fprintf(&b, "INSTRUCCIONES: Respuesta DIRECTA y CONCISA sobre %s. Máximo 2-3 párrafos. Ve directo al grano.\n\n", sp.scope)
	b.WriteString("LINKS ÚTILES PARA INCLUIR:\n")
	writeLinks(&b, links, "- ")

	return Prompt{
		System: strings.TrimRight(b.String(), "\n"),
		User:   fmt.Sprintf("### Consulta del usuario sobre %s:\n%s\n\n### Respuesta especializada de SUNABOT:", category, message),
		Stop:   categoryStop,
	}
}

// chainOfThought answers queries without a category.
func (p prompter) chainOfThought(message string) Prompt {
	var b strings.Builder
	b.WriteString("### SUNABOT - RESPUESTA DIRECTA Y CONCISA\n\n")
	b.WriteString("INSTRUCCIONES ESPECIALES:\n")
	b.WriteString("- Responde de forma DIRECTA y CONCISA\n")
	b.WriteString("- Máximo 2-3 párrafos por respuesta\n")
	b.WriteString("- Ve directo al punto sin rodeos\n")
	b.WriteString("- Usa **negritas** solo para lo más importante\n")
	b.WriteString("- Si hay pasos, máximo 3-4 puntos clave\n")
	b.WriteString("- INCLUYE LINKS ÚTILES cuando sea relevante:\n")
	writeLinks(&b, p.generalLinks(), "  * ")

	return Prompt{
		System: strings.TrimRight(b.String(), "\n"),
		User:   fmt.Sprintf("Consulta: \"%s\"\n\n### RESPUESTA CONCISA DE SUNABOT:", message),
		Stop:   generalStop,
	}
}

// direct is the free-form persona prompt of /chat_directo.
func (p prompter) direct(message string) Prompt {
	var b strings.Builder
	b.WriteString("Eres SUNABOT, un asistente especializado en temas tributarios de SUNAT (Perú).\n\n")
	b.WriteString("INSTRUCCIONES ESPECÍFICAS:\n")
	b.WriteString("- Responde como experto en temas tributarios peruanos\n")
	b.WriteString("- Sé directo, claro y útil\n")
	b.WriteString("- Máximo 3-4 párrafos\n")
	b.WriteString("- Usa **negritas** para puntos importantes\n")
	b.WriteString("- Incluye enlaces oficiales de SUNAT cuando sea relevante\n")
	b.WriteString("- Si no conoces algo específico, sé honesto al respecto\n")
	b.WriteString("- Mantén un tono profesional pero amigable\n\n")
	b.WriteString("ENLACES OFICIALES PRINCIPALES:\n")
	writeLinks(&b, p.generalLinks(), "- ")

	return Prompt{
		System: strings.TrimRight(b.String(), "\n"),
		User:   fmt.Sprintf("CONSULTA DEL USUARIO: \"%s\"\n\nRESPUESTA DE SUNABOT:", message),
		Stop:   categoryStop,
	}
}

// continuation extends a previous answer.
func (p prompter) continuation(previous, message string) Prompt {
	system := "### CONTINUACIÓN DE RESPUESTA SUNAT\n\n" +
		"Continúa proporcionando información adicional y detallada sobre el tema, manteniendo el formato estructurado:\n" +
		"- Usa **negritas** para títulos\n" +
		"- Usa numeración para pasos\n" +
		"- Usa guiones para listas\n" +
		"- Proporciona información completa y útil"

	return Prompt{
		System: system,
		User: fmt.Sprintf("Contexto previo de la conversación:\n%s\n\nSolicitud adicional del usuario:\n%s\n\n### Continuación de SUNABOT:",
			previous, message),
		Stop: categoryStop,
	}
}

// premium documents the request the specialist endpoint answers.
func (p prompter) premium(category, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CONSULTA SUNAT: %s\nCATEGORÍA: %s\n\n", message, category)
	b.WriteString("Como experto en temas tributarios de SUNAT (Perú), proporciona una respuesta:\n")
	b.WriteString("- DIRECTA y CONCISA (máximo 3 párrafos)\n")
	b.WriteString("- Con información ACTUALIZADA y PRECISA\n")
	b.WriteString("- Incluye enlaces oficiales relevantes\n")
	b.WriteString("- Usa **negritas** para puntos importantes\n")
	b.WriteString("- Si hay pasos, enuméralos claramente\n\n")
	b.WriteString("ENLACES OFICIALES ÚTILES:\n")
	writeLinks(&b, p.generalLinks(), "- ")
	return strings.TrimRight(b.String(), "\n")
}

// demo is shown by /chat_directo when no model is configured.
func (p prompter) demo(message string) string {
	var b strings.Builder
	b.WriteString("**🤖 SUNABOT - Modo Demostración**\n\n")
	fmt.Fprintf(&b, "Hola, recibí tu consulta: *\"%s\"*\n\n", message)
	b.WriteString("**Para activar respuestas de IA real, necesitas:**\n\n")
	b.WriteString("1. **Configurar el modelo de lenguaje:**\n")
	b.WriteString("   - `ARK_API_KEY` (o `ARK_ACCESS_KEY` y `ARK_SECRET_KEY`)\n")
	b.WriteString("   - `ARK_MODEL` con el endpoint del modelo\n\n")
	b.WriteString("2. **Reiniciar la aplicación**\n\n")
	b.WriteString("**Mientras tanto, puedo ayudarte con:**\n")
	for _, l := range pick(p.kb.AllLinks(), "portal_sol", "consulta_ruc", "cronograma") {
		fmt.Fprintf(&b, "- **%s**: %s\n", l.Title, l.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// demoContinuation answers /continuar when no model is configured.
func (p prompter) demoContinuation(category string) string {
	var b strings.Builder
	b.WriteString("**🤖 SUNABOT - Modo Demostración**\n\n")
	b.WriteString("Para ampliar una respuesta necesito el modelo de lenguaje configurado (`ARK_API_KEY` y `ARK_MODEL`).\n\n")
	b.WriteString("**Puedes seguir consultando en los enlaces oficiales:**\n")
	writeLinks(&b, p.kb.Links(category), "- ")
	return strings.TrimRight(b.String(), "\n")
}

func (p prompter) generalLinks() []knowledge.Link {
	return pick(p.kb.AllLinks(), generalLinkIDs...)
}

func pick(links []knowledge.Link, ids ...string) []knowledge.Link {
	out := make([]knowledge.Link, 0, len(ids))
	for _, id := range ids {
		for _, l := range links {
			if l.ID == id {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func writeLinks(b *strings.Builder, links []knowledge.Link, bullet string) {
	for _, l := range links {
		fmt.Fprintf(b, "%s%s: %s\n", bullet, l.Title, l.URL)
	}
}
