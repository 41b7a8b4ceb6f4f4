package chat

// Query kinds accepted by /responder.
const (
	KindGeneral  = "general"
	KindCategory = "categoria"
)

// Bounds of QueryRequest.MaxLength, in tokens.
const (
	DefaultMaxLength = 1200
	MinMaxLength     = 100
	MaxMaxLength     = 2000
)

// QueryRequest is the body of /responder, /responder_copilot and
// /responder_estructurado.
type QueryRequest struct {
	Message   string `json:"mensaje"`
	Kind      string `json:"tipo,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Category  string `json:"categoria,omitempty"`
}

// DirectRequest is the body of /chat_directo.
type DirectRequest struct {
	Message string `json:"mensaje"`
}

// ContinueRequest is the body of /continuar.
type ContinueRequest struct {
	Message  string `json:"mensaje"`
	Context  string `json:"context"`
	Category string `json:"categoria,omitempty"`
}

// Reply is the answer of every query endpoint. Error is set on failures.
type Reply struct {
	Answer     string `json:"respuesta"`
	Category   string `json:"categoria,omitempty"`
	Quality    string `json:"calidad,omitempty"`
	Processing string `json:"tipo_procesamiento,omitempty"`
	Technique  string `json:"tecnica_usada,omitempty"`
	AI         bool   `json:"es_ia"`
	Prompt     string `json:"prompt_usado,omitempty"`
	Error      string `json:"error,omitempty"`
}
