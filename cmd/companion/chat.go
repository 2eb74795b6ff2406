// ABOUTME: Interactive chat loop with readline-style input and slash commands.
// ABOUTME: Streams assistant output progressively via coordinator subscriptions.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/lifeos/companion/internal/daily"
	"github.com/lifeos/companion/internal/dedupe"
	"github.com/lifeos/companion/internal/session"
	"github.com/lifeos/companion/internal/store"
)

// chatSession is one open conversation context plus its output printer.
type chatSession struct {
	coord   *session.Coordinator
	printer *printer
	cancel  context.CancelFunc
}

// openChatSession builds a coordinator for agentID, loads its history, and
// starts the progressive output printer.
func openChatSession(ctx context.Context, a *app, agentID string) (*chatSession, error) {
	coord, err := session.New(agentID, a.store, session.NewGatewaySender(a.client), nil)
	if err != nil {
		return nil, fmt.Errorf("opening session with %q: %w", agentID, err)
	}

	coord.Init(ctx)

	subCtx, cancel := context.WithCancel(ctx)
	p := &printer{coord: coord}
	updates, _ := coord.Subscribe(subCtx)
	go func() {
		for range updates {
			p.render()
		}
	}()

	return &chatSession{coord: coord, printer: p, cancel: cancel}, nil
}

func (s *chatSession) close() {
	s.cancel()
}

func chatLoop(ctx context.Context, a *app, agentID string, streaming bool) error {
	sess, err := openChatSession(ctx, a, agentID)
	if err != nil {
		return err
	}
	defer sess.close()

	fmt.Printf("companion %s connected to %s\n", version, a.cfg.Gateway.URL)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	printHistory(sess.coord)
	printConnectivity(sess.coord)
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		cyan := color.New(color.FgCyan)
		cyan.Printf("[%s]> ", sess.coord.Agent().ID)

		input, err := readLine(ctx, scanner)
		if err == io.EOF || err == context.Canceled {
			fmt.Println("\nGoodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, next, err := handleCommand(ctx, a, sess, input)
			if err != nil {
				color.Red("[error] %v", err)
			}
			if next != nil {
				sess.close()
				sess = next
			}
			if done {
				fmt.Println("Goodbye!")
				return nil
			}
			fmt.Println()
			continue
		}

		sendAndPrint(ctx, sess, input, streaming)
		fmt.Println()
	}
}

// readLine reads one input line with context awareness so Ctrl+C exits
// promptly even while blocked on stdin.
func readLine(ctx context.Context, scanner *bufio.Scanner) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if scanner.Scan() {
			inputCh <- scanner.Text()
		} else {
			if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", context.Canceled
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

// sendAndPrint runs one exchange and renders the result. Exchange failures
// are surfaced inline; the loop keeps running so the user can re-send.
func sendAndPrint(ctx context.Context, sess *chatSession, input string, streaming bool) {
	var err error
	if streaming {
		err = sess.coord.SendStreaming(ctx, input)
	} else {
		err = sess.coord.Send(ctx, input)
	}

	// Flush whatever the subscription printer has not caught up on.
	sess.printer.render()

	if err != nil {
		color.Red("[error] %s", sess.coord.Err())
		return
	}
	fmt.Println()
}

// handleCommand executes a slash command. It returns done=true to exit the
// loop and a non-nil next session when the active agent changed.
func handleCommand(ctx context.Context, a *app, sess *chatSession, input string) (done bool, next *chatSession, err error) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil, nil

	case "/help":
		printChatHelp()

	case "/agents":
		runAgents(ctx)

	case "/use":
		if args == "" {
			return false, nil, fmt.Errorf("usage: /use <agent-id>")
		}
		newSess, err := openChatSession(ctx, a, args)
		if err != nil {
			return false, nil, err
		}
		fmt.Printf("Now chatting with %s\n", newSess.coord.Agent().Name)
		printHistory(newSess.coord)
		printConnectivity(newSess.coord)
		return false, newSess, nil

	case "/clear":
		sess.coord.Clear(ctx)
		color.Yellow("Conversation cleared")

	case "/summary":
		summary := a.store.Summary(sess.coord.Agent().ID)
		if summary == "" {
			fmt.Println("No conversation yet")
		} else {
			fmt.Println(summary)
		}

	case "/sync":
		cache := dedupe.New(24*time.Hour, 256)
		defer cache.Close()
		syncer := daily.New(a.store, a.client, cache, a.cfg.Sync.MaxPreviewLen, nil)
		synced, err := syncer.Sync(ctx)
		if err != nil {
			return false, nil, err
		}
		color.Green("Synced %d conversation(s)", synced)

	case "/retry":
		sess.coord.Init(ctx)
		printConnectivity(sess.coord)

	default:
		return false, nil, fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	return false, nil, nil
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /agents        List available agents")
	fmt.Println("  /use <id>      Switch to another agent")
	fmt.Println("  /clear         Clear this conversation")
	fmt.Println("  /summary       Show conversation stats")
	fmt.Println("  /sync          Sync today's conversations to the gateway")
	fmt.Println("  /retry         Re-probe gateway connectivity")
	fmt.Println("  /quit          Exit")
}

// printHistory replays the persisted conversation so the user picks up
// where they left off.
func printHistory(coord *session.Coordinator) {
	snap := coord.Snapshot()
	if len(snap) == 0 {
		return
	}

	gray := color.New(color.FgHiBlack)
	gray.Printf("--- %d earlier message(s) ---\n", len(snap))
	for _, e := range snap {
		switch e.Message.Role {
		case store.RoleUser:
			fmt.Printf("you: %s\n", e.Message.Content)
		case store.RoleAssistant:
			fmt.Printf("%s: %s\n", coord.Agent().ID, e.Message.Content)
		}
	}
}

func printConnectivity(coord *session.Coordinator) {
	if !coord.Connected() {
		color.Yellow("gateway unreachable; sends will fail until it returns (/retry to re-probe)")
	}
}

// printer writes assistant content to stdout as it accumulates on the
// working list, chunk by chunk for streaming exchanges.
type printer struct {
	mu      sync.Mutex
	coord   *session.Coordinator
	lastID  string
	printed int
}

// render prints any assistant content that has arrived since the last
// call. Safe to call from the subscription goroutine and the main loop.
func (p *printer) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.coord.Snapshot()
	if len(snap) == 0 {
		return
	}
	last := snap[len(snap)-1]
	if last.Message.Role != store.RoleAssistant {
		return
	}

	if last.Message.ID != p.lastID {
		p.lastID = last.Message.ID
		p.printed = 0
	}
	if len(last.Message.Content) > p.printed {
		fmt.Print(last.Message.Content[p.printed:])
		p.printed = len(last.Message.Content)
	}
}
