package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/agendia/sofia/pkg/types"
)

// historyWindow is how many recent turns are rendered into the
// classification prompt.
const historyWindow = 3

// Classifier detects the user's intent and extracts slot parameters from
// one message. It never fails: malformed or unreachable model output
// falls back to keyword matching.
type Classifier struct {
	provider Provider
	log      *zap.Logger
}

// NewClassifier builds a classifier on the given provider. A nil
// provider is allowed and forces the keyword fallback on every message.
func NewClassifier(provider Provider, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{provider: provider, log: log}
}

// classifierPrompt mirrors the schema the model must answer with. The
// wire format keeps Spanish keys because the assistant converses in
// Spanish and the examples anchor the model.
const classifierPrompt = `Eres un asistente de agenda que analiza mensajes para extraer intenciones y parámetros.

ACCIONES DISPONIBLES:
- consultar: ver eventos por fecha, rango de fechas o nombre
- agregar: crear un evento nuevo (requiere título, fecha y hora de inicio)
- editar: modificar un evento existente (identificado por id, nombre o fecha)
- borrar: eliminar un evento (identificado por id o nombre)
- ninguna: el mensaje no trata sobre la agenda

FORMATO DE RESPUESTA (RESPONDE SOLO EN FORMATO JSON, SIN BLOQUES DE CÓDIGO):
{
  "accion": "consultar|agregar|editar|borrar|ninguna",
  "parametros": {
    "titulo": "título del evento o null",
    "fecha": "fecha del evento o null",
    "fechaFin": "fecha fin para consultas de rango o null",
    "horaInicio": "hora de inicio o null",
    "horaFin": "hora de fin o null",
    "id": "id del evento si se menciona o null",
    "nuevoTitulo": "nuevo título en caso de edición o null"
  }
}

MENSAJE: %s

HISTORIAL RECIENTE:
%s`

// wireAnalysis is the model-facing JSON shape.
type wireAnalysis struct {
	Accion     string `json:"accion"`
	Parametros struct {
		Titulo      string `json:"titulo"`
		Fecha       string `json:"fecha"`
		FechaFin    string `json:"fechaFin"`
		HoraInicio  string `json:"horaInicio"`
		HoraFin     string `json:"horaFin"`
		ID          string `json:"id"`
		NuevoTitulo string `json:"nuevoTitulo"`
	} `json:"parametros"`
}

// Analyze classifies one message in the context of recent history.
func (c *Classifier) Analyze(ctx context.Context, message string, history []types.Turn) Analysis {
	if c.provider == nil {
		return c.fallback(message)
	}

	prompt := fmt.Sprintf(classifierPrompt, message, renderHistory(history, historyWindow))
	raw, err := c.provider.Complete(ctx, &CompletionRequest{Prompt: prompt, MaxTokens: 512})
	if err != nil {
		c.log.Warn("classifier provider failed, using keyword fallback", zap.Error(err))
		return c.fallback(message)
	}

	var wire wireAnalysis
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &wire); err != nil {
		c.log.Warn("classifier returned malformed JSON, using keyword fallback",
			zap.Error(err), zap.String("raw", raw))
		return c.fallback(message)
	}

	a := Analysis{
		Intent: intentFromAccion(wire.Accion),
		Params: Params{
			Title:     cleanNull(wire.Parametros.Titulo),
			Date:      cleanNull(wire.Parametros.Fecha),
			DateEnd:   cleanNull(wire.Parametros.FechaFin),
			StartTime: cleanNull(wire.Parametros.HoraInicio),
			EndTime:   cleanNull(wire.Parametros.HoraFin),
			ID:        cleanNull(wire.Parametros.ID),
			NewTitle:  cleanNull(wire.Parametros.NuevoTitulo),
		},
	}
	return a
}

func (c *Classifier) fallback(message string) Analysis {
	return Analysis{
		Intent:   DetectBasicIntent(message),
		Params:   ExtractBasicParams(message),
		Fallback: true,
	}
}

func renderHistory(history []types.Turn, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}

func intentFromAccion(accion string) types.Intent {
	switch strings.ToLower(strings.TrimSpace(accion)) {
	case "consultar":
		return types.IntentQuery
	case "agregar":
		return types.IntentCreate
	case "editar":
		return types.IntentEdit
	case "borrar":
		return types.IntentDelete
	default:
		return types.IntentNone
	}
}

// cleanNull treats the literal strings "null" and "nil" as absent; some
// models echo the schema placeholder instead of omitting the field.
func cleanNull(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "nil") {
		return ""
	}
	return s
}

var (
	fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	objPattern   = regexp.MustCompile(`\{[\s\S]*\}`)
)

// CleanJSON strips Markdown code fences and extracts the first JSON
// object from a model reply.
func CleanJSON(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if m := objPattern.FindString(raw); m != "" {
		return m
	}
	return strings.TrimSpace(raw)
}

var (
	queryWords  = []string{"consulta", "consultar", "ver", "revisar", "muestra", "mostrar", "lista", "listar", "buscar"}
	createWords = []string{"agrega", "agregar", "añade", "añadir", "crea", "crear", "nuevo", "programa", "programar", "agenda", "agendar"}
	editWords   = []string{"edita", "editar", "modifica", "modificar", "cambia", "cambiar", "actualiza", "actualizar", "ajusta", "ajustar"}
	deleteWords = []string{"borra", "borrar", "elimina", "eliminar", "quita", "quitar", "suprime", "cancela", "cancelar"}
)

// DetectBasicIntent is the keyword recovery path used when the model is
// unreachable or answers with something that is not JSON.
func DetectBasicIntent(text string) types.Intent {
	t := strings.ToLower(text)
	contains := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(t, w) {
				return true
			}
		}
		return false
	}
	switch {
	case contains(queryWords):
		return types.IntentQuery
	case contains(createWords):
		return types.IntentCreate
	case contains(editWords):
		return types.IntentEdit
	case contains(deleteWords):
		return types.IntentDelete
	default:
		return types.IntentNone
	}
}

var (
	basicDatePattern  = regexp.MustCompile(`\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4}`)
	basicTimePattern  = regexp.MustCompile(`(?i)\d{1,2}:\d{2}|\d{1,2} ?(?:am|pm)`)
	basicTitlePattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'|llamad[oa] ([^,\.]+)|titulad[oa] ([^,\.]+)|nombrad[oa] ([^,\.]+)`)
)

// ExtractBasicParams pulls obviously-shaped parameters out of raw text.
func ExtractBasicParams(text string) Params {
	var p Params
	if m := basicDatePattern.FindString(text); m != "" {
		p.Date = m
	}
	if m := basicTimePattern.FindString(text); m != "" {
		p.StartTime = m
	}
	if m := basicTitlePattern.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				p.Title = strings.TrimSpace(g)
				break
			}
		}
	}
	return p
}

// AgendaRelated reports whether a message mentions the calendar domain
// at all; it gates whether an idle message enters a CRUD flow or the
// small-talk path.
func AgendaRelated(text string) bool {
	t := strings.ToLower(text)
	domainWords := []string{
		"cita", "evento", "reunión", "reunion", "agenda", "calendario",
		"planear", "recordatorio", "recordar", "organizar",
	}
	for _, w := range domainWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return DetectBasicIntent(text) != types.IntentNone
}
