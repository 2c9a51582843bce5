package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-room/domain"
	"chat-room/services"
	"chat-room/transport"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Config is read from the environment, the same way the e2e harness
// configures its clients.
type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	WsURL     string `envconfig:"WS_URL" default:"ws://localhost:8080/subscribe"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"WARN"`
	// CHAT_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := transport.NewRemoteBackend(config.ServerURL, nil)
	channel := transport.NewWSChannel(config.WsURL, logger)

	view := services.NewChatView(logger, backend, channel)
	if err := view.Start(ctx); err != nil {
		return fmt.Errorf("failed to join the room: %w", err)
	}
	defer view.Stop()

	header := fmt.Sprintf("  ====== chat room @ %s ======", config.ServerURL)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
	fmt.Println("Type a message and press enter. /list redraws, /delete <id> removes, /quit leaves.")

	render(view, config.Colours)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		switch {
		case line == "/quit":
			return nil
		case line == "/list":
			render(view, config.Colours)
		case strings.HasPrefix(line, "/delete "):
			id, err := uuid.Parse(strings.TrimSpace(strings.TrimPrefix(line, "/delete ")))
			if err != nil {
				warn(config.Colours, "not a message id: %v", err)
				continue
			}
			if err := backend.SoftDeleteMessage(ctx, id); err != nil {
				warn(config.Colours, "delete failed: %v", err)
			}
		default:
			if err := view.Submit(ctx, line); err != nil {
				warn(config.Colours, "submit rejected: %v", err)
				continue
			}
			render(view, config.Colours)
		}
	}
}

func render(view *services.ChatView, colours bool) {
	messages := view.Messages()
	if len(messages) == 0 {
		fmt.Println("  (the room is empty)")
		return
	}
	for _, m := range messages {
		printMessage(m, colours)
	}
}

func printMessage(m domain.Message, colours bool) {
	stamp := m.CreatedAt.Local().Format("15:04:05")
	if colours {
		stamp = color.New(color.FgCyan).Render(stamp)
	}
	fmt.Printf("  [%s] %s  %s\n", stamp, m.Body, shortID(m.ID))
}

func warn(colours bool, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if colours {
		message = color.New(color.FgYellow).Render(message)
	}
	fmt.Println(message)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
