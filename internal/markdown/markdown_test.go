package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "Consulta tu cronograma mensual",
			want: "Consulta tu cronograma mensual",
		},
		{
			name: "newlines become breaks",
			in:   "línea uno\nlínea dos\r\nlínea tres",
			want: "línea uno<br>línea dos<br>línea tres",
		},
		{
			name: "emphasis and numbered marker",
			in:   "**a** *b*\n1. c",
			want: "<strong>a</strong> <em>b</em><br><strong>1. </strong>c",
		},
		{
			name: "numbered marker on every line",
			in:   "1. uno\n2. dos",
			want: "<strong>1. </strong>uno<br><strong>2. </strong>dos",
		},
		{
			name: "numbered marker with bold title",
			in:   "1. **Portal oficial**: ingresa",
			want: "<strong>1. </strong><strong>Portal oficial</strong>: ingresa",
		},
		{
			name: "bullets",
			in:   "- DNI\n- Recibo",
			want: "• DNI<br>• Recibo",
		},
		{
			name: "number without list spacing is untouched",
			in:   "Tasa 1.5% anual",
			want: "Tasa 1.5% anual",
		},
		{
			name: "link",
			in:   "[Consulta de RUC](https://e-consultaruc.sunat.gob.pe)",
			want: `<a href="https://e-consultaruc.sunat.gob.pe" target="_blank" style="color: #800000;">Consulta de RUC</a>`,
		},
		{
			name: "emphasis inside link text survives",
			in:   "[**SOL**](https://www.sunat.gob.pe/sol.html)",
			want: `<a href="https://www.sunat.gob.pe/sol.html" target="_blank" style="color: #800000;"><strong>SOL</strong></a>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Render(tc.in))
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	in := "**Clave SOL**\n- Recuperar: [aquí](https://www.gob.pe/7550-recuperar-la-clave-sol)\n1. Ingresa"
	r := New()
	assert.Equal(t, r.Render(in), r.Render(in))
	assert.Equal(t, r.Render(in), Render(in))
}

func TestAutolink(t *testing.T) {
	got := Autolink("Ingresa a https://www.sunat.gob.pe/sol.html.")
	assert.Equal(t,
		`Ingresa a <a href="https://www.sunat.gob.pe/sol.html" target="_blank" style="color: #1976d2; text-decoration: underline;">https://www.sunat.gob.pe/sol.html</a>.`,
		got)
}

func TestAutolinkLeavesExistingLinks(t *testing.T) {
	in := "[Portal SOL](https://www.sunat.gob.pe/sol.html) y <a href=\"https://www.gob.pe\">gob</a>"
	assert.Equal(t, in, Autolink(in))
}

func TestExtractLinks(t *testing.T) {
	text := Autolink("Ver https://www.sunat.gob.pe/sol.html, luego https://www.gob.pe/7550-recuperar-la-clave-sol")
	assert.Equal(t, []string{
		"https://www.sunat.gob.pe/sol.html",
		"https://www.gob.pe/7550-recuperar-la-clave-sol",
	}, ExtractLinks(text))
	assert.Empty(t, ExtractLinks("sin enlaces"))
}
