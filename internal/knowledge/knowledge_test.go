package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalog(t *testing.T) {
	store, err := Load()
	require.NoError(t, err)

	var names []string
	for _, c := range store.Categories() {
		names = append(names, c.Name)
		assert.NotEmpty(t, c.Description, c.Name)
		assert.NotEmpty(t, c.Links, c.Name)
		assert.NotEmpty(t, c.FAQ, c.Name)
	}
	assert.Equal(t, []string{RUC, Declarations, Invoicing, ClaveSOL, Regimes, Other}, names)
	assert.Len(t, store.AllLinks(), 7)
}

func TestQuestionsAndCannedAnswers(t *testing.T) {
	store := MustLoad()

	questions := store.Questions(RUC)
	require.Len(t, questions, 4)
	assert.Equal(t, "¿Cómo me inscribo en el RUC?", questions[0])

	answer, ok := store.CannedAnswer(RUC, "¿Cómo consulto un RUC?")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(answer, "**Consulta de RUC**"))
	assert.Contains(t, answer, "[Consulta de RUC](https://e-consultaruc.sunat.gob.pe/")

	answer, ok = store.CannedAnswer("clave sol", " ¿Cómo recupero mi contraseña? ")
	require.True(t, ok)
	assert.Contains(t, answer, "Recuperar Contraseña SOL")

	answer, ok = store.CannedAnswer(Invoicing, "¿Cómo autorizo la impresión de comprobantes?")
	assert.False(t, ok)
	assert.Equal(t, FallbackAnswer, answer)

	_, ok = store.CannedAnswer("Aduanas", "¿Qué es?")
	assert.False(t, ok)
	assert.Nil(t, store.Questions("Aduanas"))
}

func TestLinks(t *testing.T) {
	store := MustLoad()

	links := store.Links(Invoicing)
	require.Len(t, links, 2)
	assert.Equal(t, "https://e-consulta.sunat.gob.pe/ol-ti-itconsvalicpe/ConsValiCpe.htm", links[0].URL)

	assert.Equal(t, store.Links(Other), store.Links("desconocida"))
}

func TestSpecialized(t *testing.T) {
	store := MustLoad()

	cases := []struct {
		name     string
		message  string
		category string
		prefix   string
	}{
		{"definition category", "hola", DefineSUNAT, "**¿Qué es SUNAT?**"},
		{"sunat general", "sunat", SUNATGeneral, "**SUNAT - Información General**"},
		{"glossary ruc", "¿Qué es el RUC?", RUC, "**¿Qué es el RUC?**"},
		{"glossary sunat excluded by ruc", "que es sunat y el ruc", Other, "**¿Qué es el RUC?**"},
		{"glossary renta", "explícame la renta 5ta", Other, "**¿Qué es la Renta de Quinta Categoría?**"},
		{"ruc topic", "quiero consultar un ruc", RUC, "**Consulta de RUC en SUNAT**"},
		{"ruc register", "cómo inscribir mi negocio", RUC, "**Registro de RUC en SUNAT**"},
		{"ruc general", "ruc", RUC, "**Información sobre RUC**"},
		{"declarations schedule", "fecha de vencimiento", Declarations, "**Cronograma de Obligaciones Tributarias**"},
		{"invoicing verify", "validar una boleta", Invoicing, "**Verificación de Comprobantes de Pago**"},
		{"clave recover", "olvidé mi clave", ClaveSOL, "**Recuperar Clave SOL**"},
		{"regimes", "rus", Regimes, "**Regímenes Tributarios en Perú**"},
		{"unknown category", "hola", "Aduanas", "**Consultas Generales SUNAT**"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := store.Specialized(tc.message, tc.category)
			assert.True(t, strings.HasPrefix(got, tc.prefix), "got %q", firstLine(got))
		})
	}
}

func TestParseRejectsUnknownLink(t *testing.T) {
	_, err := Parse([]byte("categories:\n  - name: RUC\n    links: [missing]\n"))
	assert.ErrorIs(t, err, ErrUnknownLink)
}

func TestCategoriesReturnsCopies(t *testing.T) {
	store := MustLoad()
	cats := store.Categories()
	cats[0].FAQ[0].Question = "changed"
	assert.NotEqual(t, "changed", store.Questions(RUC)[0])
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Preguntas frecuentes sobre RUC:", Title(RUC))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
