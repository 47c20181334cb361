package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agendia/sofia/internal/calendar"
	"github.com/agendia/sofia/internal/dialogue"
	"github.com/agendia/sofia/internal/events"
	"github.com/agendia/sofia/internal/llm"
	"github.com/agendia/sofia/internal/logging"
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// app bundles the wired conversation core and its resources.
type app struct {
	router   *dialogue.Router
	bus      *events.Bus
	sessions session.Store
	calendar *calendar.SQLiteStore
	log      *zap.Logger
}

func (a *app) close() {
	a.bus.Close()
	a.sessions.Close()
	a.calendar.Close()
	_ = a.log.Sync()
}

func buildApp() (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	cal, err := calendar.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening calendar database: %w", err)
	}

	sessions, err := session.Open(session.Options{
		Driver:    cfg.SessionDriver,
		RedisAddr: cfg.RedisAddr,
		RedisTTL:  int(cfg.RedisTTL.Seconds()),
	})
	if err != nil {
		cal.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	var gemini llm.Provider
	if cfg.GeminiAPIKey != "" {
		gemini, err = llm.CreateProvider(llm.ProviderConfig{
			Type:    llm.ProviderGemini,
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			logger.Warn("gemini provider unavailable, keyword fallback only", zap.Error(err))
		}
	}

	var openai llm.Provider
	if cfg.OpenAIAPIKey != "" {
		openai, err = llm.CreateProvider(llm.ProviderConfig{
			Type:    llm.ProviderOpenAI,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			logger.Warn("openai provider unavailable, fixed replies only", zap.Error(err))
		}
	}

	bus := events.NewBus()
	router := dialogue.NewRouter(
		sessions,
		cal,
		llm.NewClassifier(gemini, logger.Named("llm")),
		llm.NewComposer(gemini, openai, logger.Named("llm")),
		bus,
		logger.Named("dialogue"),
		dialogue.Options{MaxAttempts: cfg.MaxAttempts},
	)

	return &app{
		router:   router,
		bus:      bus,
		sessions: sessions,
		calendar: cal,
		log:      logger,
	}, nil
}

// watchEvents prints flow and calendar lifecycle events while --verbose
// is set. turn.completed is left out: the reply itself already shows it.
func watchEvents(ctx context.Context, a *app) {
	if !verbose {
		return
	}
	streamer := events.NewStreamer(a.bus, events.EventFilter{Types: []events.EventType{
		events.EventFlowStarted,
		events.EventFlowCancelled,
		events.EventCalendarCreated,
		events.EventCalendarUpdated,
		events.EventCalendarDeleted,
		events.EventSessionReset,
	}})
	ch, err := streamer.Start(ctx)
	if err != nil {
		a.log.Warn("event stream unavailable", zap.Error(err))
		return
	}
	go func() {
		defer streamer.Stop()
		for ev := range ch {
			line, err := events.FormatEvent(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "event: %s\n", line)
		}
	}()
}

func chatCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with Sofía",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			watchEvents(ctx, a)

			fmt.Println("Escribe tu mensaje (\"salir\" para terminar).")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "salir" || text == "exit" {
					fmt.Println("¡Hasta pronto! 👋")
					break
				}
				reply := a.router.Handle(ctx, userID, text)
				fmt.Println(reply.Message)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "default", "conversation user id")
	return cmd
}

func sendCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a single message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			watchEvents(ctx, a)

			reply := a.router.Handle(ctx, userID, strings.Join(args, " "))
			fmt.Println(reply.Message)
			if reply.Status == types.StatusError {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "default", "conversation user id")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo events into an empty calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := calendar.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening calendar database: %w", err)
			}
			defer cal.Close()

			if err := cal.Seed(cmd.Context()); err != nil {
				return fmt.Errorf("seeding demo events: %w", err)
			}
			fmt.Println("Demo events loaded.")
			return nil
		},
	}
}
