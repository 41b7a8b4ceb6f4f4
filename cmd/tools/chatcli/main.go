// Command chatcli is a terminal version of the SUNABOT widget. It talks to a
// running server, or answers in process with -local, and can read replies
// aloud into audio files.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/client"
	"github.com/sunabot/sunabot/backend/internal/config"
	"github.com/sunabot/sunabot/backend/internal/knowledge"
	"github.com/sunabot/sunabot/backend/internal/logging"
	"github.com/sunabot/sunabot/backend/internal/model/chat"
	"github.com/sunabot/sunabot/backend/internal/playback"
	"github.com/sunabot/sunabot/backend/internal/service/assistant"
	"github.com/sunabot/sunabot/backend/internal/service/speech"
	"github.com/sunabot/sunabot/backend/internal/widget"
)

const help = `Comandos:
  <texto>                     consulta directa (/chat_directo)
  /copilot <texto>            respuesta especializada (/responder_copilot)
  /general <texto>            consulta general (/responder)
  /categoria <nombre> [texto] consulta de categoría (/responder)
  /faq [categoría]            categorías o preguntas frecuentes
  /pregunta <categoría> <n>   respuesta predeterminada de la pregunta n
  /continuar                  continuar la última respuesta
  /reintentar                 repetir la última consulta
  /leer                       leer, pausar o reanudar la última respuesta
  /reiniciar                  leer desde el inicio
  /detener                    detener la lectura
  /salir`

func main() {
	local := flag.Bool("local", false, "responder en proceso sin servidor")
	server := flag.String("server", "", "URL del servidor (por defecto SUNABOT_SERVER_URL)")
	audioDir := flag.String("audio-dir", "", "directorio para el audio leído; vacío desactiva la lectura")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuración inválida: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	kb := knowledge.MustLoad()
	backend, err := newBackend(ctx, cfg, kb, *local, *server)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create backend")
	}

	var opts []widget.Option
	var reader *speaker
	if *audioDir != "" {
		reader, err = newSpeaker(cfg, *audioDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start speech")
		}
		defer reader.close()
		opts = append(opts, widget.WithSpeech(reader.controller))
	}

	s := &shell{conv: widget.New(backend, kb, opts...), kb: kb, speaker: reader}
	fmt.Println("SUNABOT - asistente tributario. Escribe /ayuda para ver los comandos.")
	s.run(ctx, os.Stdin)
}

func newBackend(ctx context.Context, cfg *config.Config, kb knowledge.Store, local bool, server string) (widget.Backend, error) {
	if !local {
		if server == "" {
			server = cfg.Client.ServerURL
		}
		return client.New(server), nil
	}

	var completer assistant.Completer
	if cfg.AI.Enabled() {
		c, err := assistant.NewChainCompleter(ctx, cfg.AI)
		if err != nil {
			return nil, err
		}
		completer = c
	}
	return assistant.NewService(completer, kb, cfg.AI), nil
}

type shell struct {
	conv    *widget.Conversation
	kb      knowledge.Store
	speaker *speaker
	lastBot chat.Turn
}

func (s *shell) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/salir" {
			return
		}
		if err := s.handle(ctx, line); err != nil {
			fmt.Println("⚠️ ", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *shell) handle(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/ayuda":
		fmt.Println(help)
		return nil
	case "/copilot":
		return s.show(s.conv.Ask(ctx, widget.Query{Message: rest, Mode: widget.ModeCopilot}))
	case "/general":
		return s.show(s.conv.Ask(ctx, widget.Query{Message: rest, Mode: widget.ModeLocal}))
	case "/categoria":
		category, message := s.splitCategory(rest)
		return s.show(s.conv.SendCategory(ctx, category, message))
	case "/faq":
		return s.faq(rest)
	case "/pregunta":
		return s.question(ctx, rest)
	case "/continuar":
		if s.lastBot.ID == "" {
			return widget.ErrUnknownTurn
		}
		return s.show(s.conv.Continue(ctx, s.lastBot.ID))
	case "/reintentar":
		return s.show(s.conv.Retry(ctx))
	case "/leer", "/reiniciar", "/detener":
		return s.speech(ctx, cmd)
	}
	if strings.HasPrefix(cmd, "/") {
		return fmt.Errorf("comando desconocido %s", cmd)
	}
	return s.show(s.conv.Send(ctx, line))
}

// show prints a bot turn. Failed turns point the user at /reintentar.
func (s *shell) show(turn chat.Turn, err error) error {
	if turn.ID == "" {
		if errors.Is(err, widget.ErrEmptyMessage) {
			return errors.New(widget.AlertEmptyMessage)
		}
		return err
	}

	if turn.Failed {
		fmt.Printf("❌ %s (usa /reintentar)\n", turn.Text)
		return nil
	}
	s.lastBot = turn

	var badges []string
	if turn.Category != "" && turn.Category != knowledge.Other {
		badges = append(badges, "["+turn.Category+"]")
	}
	if turn.Quality == assistant.QualityPremium {
		badges = append(badges, "[⚡ Premium]")
	}
	if len(badges) > 0 {
		fmt.Println(strings.Join(badges, " "))
	}
	fmt.Println(turn.Text)
	if turn.Incomplete && s.conv.CanContinue(turn.ID) {
		fmt.Println("… respuesta incompleta, usa /continuar")
	}
	return nil
}

func (s *shell) splitCategory(rest string) (string, string) {
	for _, c := range s.kb.Categories() {
		if len(rest) >= len(c.Name) && strings.EqualFold(rest[:len(c.Name)], c.Name) {
			return c.Name, strings.TrimSpace(rest[len(c.Name):])
		}
	}
	category, message, _ := strings.Cut(rest, " ")
	return category, message
}

func (s *shell) faq(category string) error {
	if category == "" {
		for _, c := range s.kb.Categories() {
			fmt.Printf("- %s: %s\n", c.Name, c.Description)
		}
		return nil
	}
	title, questions, err := s.conv.CategoryQuestions(category)
	if err != nil {
		return err
	}
	fmt.Println(title)
	for i, q := range questions {
		fmt.Printf("  %d. %s\n", i+1, q)
	}
	return nil
}

func (s *shell) question(ctx context.Context, rest string) error {
	idx := strings.LastIndex(rest, " ")
	if idx < 0 {
		return errors.New("uso: /pregunta <categoría> <n>")
	}
	category := strings.TrimSpace(rest[:idx])
	n, err := strconv.Atoi(rest[idx+1:])
	if err != nil {
		return fmt.Errorf("número de pregunta inválido: %w", err)
	}

	_, questions, err := s.conv.CategoryQuestions(category)
	if err != nil {
		return err
	}
	if n < 1 || n > len(questions) {
		return fmt.Errorf("la categoría tiene %d preguntas", len(questions))
	}
	fmt.Println("👤", questions[n-1])
	return s.show(s.conv.SelectQuestion(ctx, category, questions[n-1]))
}

func (s *shell) speech(ctx context.Context, cmd string) error {
	if s.speaker == nil {
		return errors.New("lectura desactivada, inicia con -audio-dir")
	}
	c := s.speaker.controller
	trigger := playback.TriggerID(s.lastBot.ID)
	switch cmd {
	case "/leer":
		return c.Toggle(ctx, trigger, s.lastBot.HTML)
	case "/reiniciar":
		return c.Restart(ctx, trigger)
	default:
		return c.StopAll(ctx)
	}
}

// speaker reads replies through the TTS provider into one audio file per
// reading.
type speaker struct {
	controller *playback.Controller
	dir        string

	mu    sync.Mutex
	files map[string]*os.File
}

func newSpeaker(cfg *config.Config, dir string) (*speaker, error) {
	if !cfg.Speech.Enabled {
		return nil, speech.ErrCredentialsMissing
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	sp := &speaker{dir: dir, files: make(map[string]*os.File)}
	svc := speech.NewService(cfg.Speech.Model(), cfg.Speech.Catalog())
	engine := svc.NewEngine(speech.AudioSinkFunc(sp.write), speech.EngineOptions{
		ChunkBytes: cfg.Speech.ChunkBytes,
		Interval:   cfg.Speech.ChunkInterval,
	})
	sp.controller = playback.NewController(engine, playback.ObserverFuncs{
		OnAffordance: func(a playback.Affordance) { fmt.Printf("%s %s\n", a.Icon, a.Tooltip) },
		OnAlert:      func(message string) { fmt.Println("⚠️ ", message) },
	}, playback.WithSettings(cfg.Speech.Settings()))
	return sp, nil
}

func (sp *speaker) write(_ context.Context, chunk speech.AudioChunk) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	f, ok := sp.files[chunk.Trigger]
	if !ok || chunk.Seq == 0 {
		if ok {
			_ = f.Close()
		}
		var err error
		f, err = os.Create(filepath.Join(sp.dir, chunk.Trigger+"."+chunk.Format))
		if err != nil {
			return err
		}
		sp.files[chunk.Trigger] = f
	}

	if _, err := f.Write(chunk.Data); err != nil {
		return err
	}
	if chunk.Final {
		delete(sp.files, chunk.Trigger)
		fmt.Println("🔊 audio guardado en", f.Name())
		return f.Close()
	}
	return nil
}

func (sp *speaker) close() {
	_ = sp.controller.Close()
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for id, f := range sp.files {
		_ = f.Close()
		delete(sp.files, id)
	}
}
