// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Plain-terminal chat for parley.
//
// Handles the "parley chat" command: a readline-style REPL for terminals
// where the full TUI is unwanted or unavailable (piped output, dumb
// terminals, --plain).
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/parley-chat/parley-tui/internal/app"
	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/ui/components"
	"github.com/parley-chat/parley-tui/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatInput provides line editing and input history for the REPL.
type ChatInput struct {
	line        *liner.State
	historyFile string
}

// NewChatInput creates the line editor and loads saved history.
func NewChatInput() *ChatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	in := &ChatInput{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	in.loadHistory()
	return in
}

func (c *ChatInput) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line, recording non-empty input in history.
func (c *ChatInput) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

func (c *ChatInput) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatInput) Close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the plain-terminal chat loop.
func HandleChat(args Args) error {
	cfg := config.Global()
	if args.Model != "" {
		cfg = cfg.Clone()
		cfg.DefaultModel = args.Model
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	// Stream tokens straight to the terminal as they arrive.
	if cfg.Generation.Stream {
		a.OnToken(func(_, token string) {
			fmt.Print(token)
		})
	}

	// Progress feedback while the model loads.
	if !args.Quiet {
		a.OnModelEvent(func(snap lifecycle.Snapshot) {
			if snap.Status == lifecycle.StatusLoading {
				fmt.Fprintf(os.Stderr, "\r%s %d%%   ", snap.Stage, snap.Progress)
			}
		})
	}

	fmt.Fprintf(os.Stderr, "Loading %s…\n", cfg.DefaultModel)
	if err := a.LoadModel(context.Background(), ""); err != nil {
		return fmt.Errorf("model load failed: %w (is Ollama running? try: ollama serve)", err)
	}
	fmt.Fprint(os.Stderr, "\r                                        \r")

	if !args.Quiet {
		printWelcome(cfg.DefaultModel)
	}

	input := NewChatInput()
	defer input.Close()

	// Ctrl+C cancels the in-flight reply rather than killing the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			a.AbortGeneration()
			fmt.Println()
		}
	}()

	return chatLoop(a, input, cfg.Generation.Stream)
}

func chatLoop(a *app.App, input *ChatInput, streaming bool) error {
	prompt := promptStyle.Render("you> ")

	for {
		text, err := input.ReadInput(prompt)
		if err != nil {
			// Ctrl+D or Ctrl+C at the prompt ends the session.
			if err == liner.ErrPromptAborted {
				continue
			}
			fmt.Println()
			return nil
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			if quit := handleSlashCommand(a, trimmed); quit {
				return nil
			}
			continue
		}

		if err := a.SendMessage(context.Background(), text); err != nil {
			fmt.Println(warningStyle.Render("error: " + err.Error()))
			continue
		}

		// Streaming already printed the reply token by token; otherwise
		// print it from the conversation.
		if !streaming {
			if conv := a.ActiveConversation(); conv != nil {
				if n := len(conv.Messages); n > 0 {
					reply := conv.Messages[n-1].Content
					if ColorEnabled() {
						reply = components.RenderCodeBlocks(reply, GetTerminalWidth())
					}
					fmt.Println(reply)
				}
			}
		}
		fmt.Println()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand executes an interactive command. Returns true when the
// session should end.
func handleSlashCommand(a *app.App, cmdline string) bool {
	fields := strings.Fields(cmdline)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(cmdline, cmd))

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		printChatHelp()

	case "/new", "/n":
		a.CreateConversation()
		fmt.Println(infoStyle.Render("started a new conversation"))

	case "/list", "/ls":
		printConversationList(a)

	case "/switch", "/s":
		n, err := strconv.Atoi(rest)
		if err != nil {
			fmt.Println(warningStyle.Render("usage: /switch <number>"))
			break
		}
		convs := a.Conversations()
		if n < 1 || n > len(convs) {
			fmt.Println(warningStyle.Render(fmt.Sprintf("no conversation %d", n)))
			break
		}
		if err := a.SelectConversation(convs[n-1].ID); err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("switched to: " + convs[n-1].DisplayTitle()))

	case "/rename":
		state := a.State()
		if err := a.RenameConversation(state.ActiveConversationID, rest); err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("renamed to: " + rest))

	case "/clear", "/c":
		a.ClearActiveConversation()
		fmt.Println(infoStyle.Render("conversation cleared"))

	case "/model", "/m":
		if rest == "" {
			state := a.State()
			fmt.Println(infoStyle.Render(fmt.Sprintf("model: %s (%s)", state.ModelID, state.ModelStatus)))
			break
		}
		fmt.Fprintf(os.Stderr, "Loading %s…\n", rest)
		if err := a.SwitchModel(context.Background(), rest); err != nil {
			fmt.Println(warningStyle.Render("model load failed: " + err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("model ready: " + rest))

	default:
		fmt.Println(warningStyle.Render("unknown command: " + cmd + " (try /help)"))
	}

	return false
}

func printConversationList(a *app.App) {
	state := a.State()
	for i, conv := range state.Conversations {
		marker := "  "
		if conv.ID == state.ActiveConversationID {
			marker = commandStyle.Render("* ")
		}
		fmt.Printf("%s%2d. %s (%d messages)\n", marker, i+1, conv.DisplayTitle(), conv.MessageCount())
	}
}

func printWelcome(model string) {
	fmt.Println(welcomeStyle.Render("parley") + infoStyle.Render(" — chatting with "+model))
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Println()
}

func printChatHelp() {
	help := [][2]string{
		{"/new", "start a new conversation"},
		{"/list", "list conversations"},
		{"/switch <n>", "switch to conversation n"},
		{"/rename <title>", "rename the current conversation"},
		{"/clear", "clear the current conversation"},
		{"/model [name]", "show or switch model"},
		{"/quit", "exit chat"},
	}
	for _, h := range help {
		fmt.Printf("  %s %s\n", commandStyle.Render(fmt.Sprintf("%-16s", h[0])), h[1])
	}
}
