// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive chat REPL for routerchat.
//
// Provides the --plain mode REPL for conversing through the relay without
// the full-screen TUI. Useful over SSH, in narrow terminals, and when
// stdout is piped.
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new [name]         Start a new conversation
//   /list, /ls          List conversations
//   /select N           Switch to conversation N
//   /rename [NAME]      Rename current conversation (prompts if omitted)
//   /delete [N]         Delete conversation (current if N omitted)
//   /model [id]         Show or switch model
//   /models             List supported models
//   /export [format]    Export current conversation (markdown, html, json)
//   /history            Show conversation history
//   /stats, /s          Show usage statistics
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/routerchat/internal/chat"
	"github.com/jeranaias/routerchat/internal/config"
	"github.com/jeranaias/routerchat/internal/export"
	"github.com/jeranaias/routerchat/internal/model"
	"github.com/jeranaias/routerchat/internal/telemetry"
	"github.com/jeranaias/routerchat/internal/util"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Controller drives conversations, persistence, and relay calls.
	Ctrl *chat.Controller

	// Configuration
	Config *config.Config
	Quiet  bool

	// Usage statistics store (nil when telemetry is disabled)
	Usage *telemetry.Store

	// Tracking
	StartTime time.Time
	Queries   int

	// Cancel function for current stream
	CancelFunc context.CancelFunc

	// Input history handler
	InputCLI *ChatCLI
}

// NewChatSession creates a new chat session around a loaded controller.
func NewChatSession(ctrl *chat.Controller, cfg *config.Config, usage *telemetry.Store, quiet bool) *ChatSession {
	return &ChatSession{
		Ctrl:      ctrl,
		Config:    cfg,
		Quiet:     quiet,
		Usage:     usage,
		StartTime: time.Now(),
		InputCLI:  NewChatCLI(),
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// RunChat runs the interactive REPL until the user exits.
func RunChat(session *ChatSession) error {
	// Show welcome message
	if !session.Quiet {
		printWelcome(session)
	}

	// Ensure input history is saved on exit
	defer session.InputCLI.Close()

	// Set up signal handling for graceful Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for sig := range sigChan {
			if sig == os.Interrupt || sig == syscall.SIGTERM {
				// First Ctrl+C cancels the current generation
				if session.CancelFunc != nil {
					session.CancelFunc()
					session.CancelFunc = nil
					fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
				}
			}
		}
	}()

	// Main REPL loop using liner for input history
	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("routerchat> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C pressed at the prompt - exit gracefully
				fmt.Println()
				printExitSummary(session)
				return nil
			}
			// EOF (Ctrl+D) or other error - exit gracefully
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)

		// Skip empty input
		if input == "" {
			continue
		}

		// Handle slash commands
		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n",
					errorStyle.Render("[Error]"),
					err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		// Handle exit/quit without slash
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		// Process the message
		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n",
				errorStyle.Render("[Error]"),
				err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage submits a message and prints the streamed response.
func processMessage(session *ChatSession, input string) error {
	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	store := session.Ctrl.Store()
	startTime := time.Now()

	// USABILITY: Render markdown on TTY for better formatting. When not on a
	// TTY the raw tokens stream straight through as they arrive.
	useMarkdown := IsStdoutTTY()

	var printed int
	if !useMarkdown {
		store.SetOnChange(func() {
			conv := store.ActiveSnapshot()
			if conv == nil {
				return
			}
			last := conv.LastMessage()
			if last == nil || last.Role != model.RoleAI {
				return
			}
			if len(last.Content) > printed {
				streamToStdout(last.Content[printed:])
				printed = len(last.Content)
			}
		})
		defer store.SetOnChange(nil)
	}

	fmt.Println() // Space before response

	if err := session.Ctrl.Submit(ctx, input); err != nil {
		if errors.Is(err, chat.ErrBusy) {
			return fmt.Errorf("a response is already in flight")
		}
		return err
	}

	// Submit appends the AI reply (or an error message) to the active
	// conversation before returning.
	conv := store.ActiveSnapshot()
	var reply *model.Message
	if conv != nil {
		if last := conv.LastMessage(); last != nil && last.Role == model.RoleAI {
			reply = last
		}
	}

	if reply != nil && useMarkdown {
		displayResponse(reply.Content)
	}

	fmt.Println()
	fmt.Println() // Extra space after response

	session.Queries++
	recordUsage(session, input, reply, time.Since(startTime))

	// Show brief stats (unless quiet)
	if !session.Quiet && reply != nil {
		showBriefStats(reply, time.Since(startTime))
	}

	return nil
}

// recordUsage writes an exchange record to the telemetry store.
// Only sizes and timing are recorded, never message content.
func recordUsage(session *ChatSession, input string, reply *model.Message, elapsed time.Duration) {
	if session.Usage == nil {
		return
	}

	conv := session.Ctrl.Store().ActiveSnapshot()
	ex := telemetry.Exchange{
		ModelID:     session.Ctrl.Store().SelectedModel(),
		PromptChars: len(input),
		Duration:    elapsed,
	}
	if conv != nil {
		ex.ConversationID = conv.ID
	}
	if reply != nil {
		ex.ReplyChars = len(reply.Content)
		ex.Failed = strings.HasPrefix(reply.Content, "Error: ")
		if reply.ModelID != "" {
			ex.ModelID = reply.ModelID
		}
	} else {
		ex.Failed = true
	}

	if err := session.Usage.Record(ex); err != nil {
		fmt.Fprintf(os.Stderr, "%s could not record usage: %v\n",
			warningStyle.Render("[Warning]"), err)
	}
}

// showBriefStats shows brief stats after a response.
func showBriefStats(reply *model.Message, elapsed time.Duration) {
	modelName := reply.ModelID
	if modelName == "" {
		modelName = "unknown"
	}

	fmt.Fprintf(os.Stderr, "%s %s | %s chars | %s\n",
		infoStyle.Render("[Stats]"),
		commandStyle.Render(modelName),
		formatNumber(len(reply.Content)),
		elapsed.Round(time.Millisecond))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printHelp()
		return true, nil

	case "/new", "/n":
		return handleNewCommand(session, args)

	case "/list", "/ls":
		printConversationList(session)
		return true, nil

	case "/select", "/sel":
		return handleSelectCommand(session, args)

	case "/rename":
		return handleRenameCommand(session, args)

	case "/delete", "/del":
		return handleDeleteCommand(session, args)

	case "/model", "/m":
		return handleModelCommand(session, args)

	case "/models":
		printModelList(session)
		return true, nil

	case "/export", "/e":
		return handleExportCommand(session, args)

	case "/history":
		printHistory(session)
		return true, nil

	case "/stats", "/s":
		printStats(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleNewCommand starts a new conversation.
func handleNewCommand(session *ChatSession, args []string) (bool, error) {
	conv, err := session.Ctrl.NewConversation()
	if err != nil {
		return true, err
	}

	if name := strings.Join(args, " "); name != "" {
		if err := session.Ctrl.RenameConversation(conv.ID, name); err != nil {
			return true, err
		}
	}

	fmt.Printf("%s Started %s\n",
		commandStyle.Render("[OK]"),
		conv.Name)
	return true, nil
}

// handleSelectCommand switches the active conversation by list index.
func handleSelectCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		return true, fmt.Errorf("usage: /select N (see /list)")
	}

	conv, err := conversationByIndex(session, args[0])
	if err != nil {
		return true, err
	}

	if err := session.Ctrl.SelectConversation(conv.ID); err != nil {
		return true, err
	}

	fmt.Printf("%s Switched to %s\n",
		commandStyle.Render("[OK]"),
		conv.Name)
	return true, nil
}

// handleRenameCommand renames the active conversation.
func handleRenameCommand(session *ChatSession, args []string) (bool, error) {
	conv := session.Ctrl.Store().ActiveSnapshot()
	if conv == nil {
		return true, fmt.Errorf("no active conversation")
	}

	name := strings.Join(args, " ")
	if name == "" {
		// Bare /rename asks for the name, which needs a terminal.
		if err := RequiresTTY("rename a conversation"); err != nil {
			return true, err
		}
		input, err := session.InputCLI.ReadInput(promptStyle.Render("New name: "))
		if err != nil {
			return true, nil
		}
		name = strings.TrimSpace(input)
		if name == "" {
			return true, fmt.Errorf("usage: /rename NAME")
		}
	}
	if err := session.Ctrl.RenameConversation(conv.ID, name); err != nil {
		return true, err
	}

	fmt.Printf("%s Renamed to %s\n",
		commandStyle.Render("[OK]"),
		name)
	return true, nil
}

// handleDeleteCommand deletes a conversation (the active one by default).
func handleDeleteCommand(session *ChatSession, args []string) (bool, error) {
	var id string
	if len(args) == 0 {
		conv := session.Ctrl.Store().ActiveSnapshot()
		if conv == nil {
			return true, fmt.Errorf("no active conversation")
		}
		id = conv.ID
	} else {
		conv, err := conversationByIndex(session, args[0])
		if err != nil {
			return true, err
		}
		id = conv.ID
	}

	if err := session.Ctrl.DeleteConversation(id); err != nil {
		return true, err
	}

	fmt.Println(commandStyle.Render("[Conversation deleted]"))
	return true, nil
}

// handleModelCommand handles the /model command.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	current := session.Ctrl.Store().SelectedModel()

	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			infoStyle.Render("[Model]"),
			commandStyle.Render(model.ModelDisplayName(current)))
		return true, nil
	}

	// Accept either a model ID or an index into the /models listing
	target := args[0]
	if idx, err := strconv.Atoi(target); err == nil {
		if idx < 1 || idx > len(model.SupportedModels) {
			return true, fmt.Errorf("model index out of range: %d (see /models)", idx)
		}
		target = model.SupportedModels[idx-1].ID
	}

	if err := session.Ctrl.SelectModel(target); err != nil {
		return true, err
	}

	fmt.Printf("%s Switched to model: %s\n",
		commandStyle.Render("[OK]"),
		model.ModelDisplayName(target))
	return true, nil
}

// handleExportCommand exports the active conversation.
func handleExportCommand(session *ChatSession, args []string) (bool, error) {
	conv := session.Ctrl.Store().ActiveSnapshot()
	if conv == nil {
		return true, fmt.Errorf("no active conversation")
	}
	if conv.IsEmpty() {
		return true, fmt.Errorf("conversation has no messages to export")
	}

	format := "markdown"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}

	opts := export.DefaultOptions()
	opts.Theme = session.Config.UI.Theme
	opts.HighlightTheme = session.Config.Export.HighlightTheme
	if session.Config.Export.Dir != "" {
		opts.OutputDir = session.Config.Export.Dir
	}

	exporter, err := export.ExporterFor(format, opts)
	if err != nil {
		return true, err
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return true, err
	}

	fmt.Printf("%s Exported to %s\n",
		commandStyle.Render("[OK]"),
		path)
	return true, nil
}

// conversationByIndex resolves a 1-based index from /list into a conversation.
func conversationByIndex(session *ChatSession, arg string) (*model.Conversation, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("not a number: %s", arg)
	}

	convs := session.Ctrl.Store().Snapshots()
	if idx < 1 || idx > len(convs) {
		return nil, fmt.Errorf("conversation index out of range: %d (see /list)", idx)
	}
	return convs[idx-1], nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	store := session.Ctrl.Store()

	fmt.Println()
	fmt.Println(welcomeStyle.Render("routerchat interactive chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(model.ModelDisplayName(store.SelectedModel())))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Relay:"),
		commandStyle.Render(session.Config.Client.RelayURL))
	if conv := store.ActiveSnapshot(); conv != nil {
		fmt.Printf("%s %s (%d messages)\n",
			infoStyle.Render("Conversation:"),
			conv.Name,
			conv.MessageCount())
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func printHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new [name]", "Start a new conversation"},
		{"/list, /ls", "List conversations"},
		{"/select N", "Switch to conversation N"},
		{"/rename [NAME]", "Rename current conversation"},
		{"/delete [N]", "Delete conversation"},
		{"/model [id]", "Show or switch model"},
		{"/models", "List supported models"},
		{"/export [fmt]", "Export conversation (markdown, html, json)"},
		{"/history", "Show conversation history"},
		{"/stats, /s", "Show usage statistics"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printConversationList lists conversations, most recent first.
func printConversationList(session *ChatSession) {
	store := session.Ctrl.Store()
	convs := store.Snapshots()
	activeID := store.ActiveID()

	if len(convs) == 0 {
		fmt.Println(infoStyle.Render("[No conversations]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversations"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	// Pad names to a common column so the counts line up.
	nameWidth := 0
	for _, conv := range convs {
		if w := util.StringWidth(conv.Name); w > nameWidth {
			nameWidth = w
		}
	}

	for i, conv := range convs {
		marker := "  "
		name := util.PadRight(conv.Name, nameWidth)
		if conv.ID == activeID {
			marker = commandStyle.Render("* ")
			name = commandStyle.Render(name)
		}
		fmt.Printf("%s%d. %s %s\n",
			marker,
			i+1,
			name,
			infoStyle.Render(fmt.Sprintf("(%d messages, %s)",
				conv.MessageCount(),
				conv.UpdatedAt.Format("Jan 2 15:04"))))
	}

	fmt.Println()
}

// printModelList lists the supported models.
func printModelList(session *ChatSession) {
	current := session.Ctrl.Store().SelectedModel()

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Supported Models"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	for i, m := range model.SupportedModels {
		marker := "  "
		name := m.Name
		if m.ID == current {
			marker = commandStyle.Render("* ")
			name = commandStyle.Render(name)
		}
		fmt.Printf("%s%d. %s %s\n",
			marker,
			i+1,
			name,
			infoStyle.Render(m.ID))
	}

	fmt.Println()
}

// printHistory prints the active conversation's history.
func printHistory(session *ChatSession) {
	conv := session.Ctrl.Store().ActiveSnapshot()
	if conv == nil || conv.IsEmpty() {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range conv.Messages {
		var role string
		switch msg.Role {
		case model.RoleUser:
			role = promptStyle.Render("You")
		case model.RoleAI:
			role = welcomeStyle.Render("AI")
		default:
			role = msg.Role.String()
		}

		// Rune-safe truncation keeps multi-byte characters intact
		content := util.TruncateRunes(strings.ReplaceAll(msg.Content, "\n", " "), 100)

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

// printStats prints usage statistics from the telemetry store.
func printStats(session *ChatSession) {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Usage Statistics"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	elapsed := time.Since(session.StartTime).Round(time.Second)
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Session:"),
		elapsed.String())
	fmt.Printf("  %s %d\n",
		infoStyle.Render("Queries:"),
		session.Queries)

	if session.Usage == nil {
		fmt.Println()
		fmt.Println(infoStyle.Render("[Telemetry disabled - no historical stats]"))
		fmt.Println()
		return
	}

	exchanges, failures, err := session.Usage.Totals()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("All time:"))
	fmt.Printf("  %s %s (%s failed)\n",
		infoStyle.Render("Exchanges:"),
		formatNumber(exchanges),
		util.IntToString(failures))

	byModel, err := session.Usage.ByModel()
	if err == nil && len(byModel) > 0 {
		fmt.Println()
		fmt.Println(infoStyle.Render("By model:"))
		for _, mu := range byModel {
			avg := 0.0
			if mu.Exchanges > 0 {
				avg = mu.TotalTime.Seconds() / float64(mu.Exchanges)
			}
			fmt.Printf("  %s %s exchanges, %s chars out, %ss avg\n",
				commandStyle.Render(fmt.Sprintf("%-40s", mu.ModelID)),
				util.IntToString(mu.Exchanges),
				util.Int64ToString(mu.ReplyChars),
				util.FloatToString(avg))
		}
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Queries == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n",
		infoStyle.Render("Queries:"),
		session.Queries)
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
