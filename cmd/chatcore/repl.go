package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/aixgo-dev/chatcore/agent"
	llmctx "github.com/aixgo-dev/chatcore/internal/llm/context"
	"github.com/aixgo-dev/chatcore/internal/llm/parser"
	"github.com/aixgo-dev/chatcore/internal/strategy"
	"github.com/aixgo-dev/chatcore/pkg/memory"
)

const helpText = `Commands:
  /help               show this help
  /reset              forget the conversation
  /history            print the stored messages
  /strategy NAME      switch to sliding_window, sticky_facts or branching
  /facts              print the sticky facts
  /checkpoint         mark the current history as the branching base
  /branch ID          create branch ID and make it active
  /switch ID          make an existing branch active
  /branches           list branches
  /summary            print the running summary
  /debug              toggle prompt labels and token metrics
  /quit               exit
`

// lineReader is the part of liner.State the loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// repl drives either a ChatAgent or a SummaryAgent from terminal input.
type repl struct {
	chat     *agent.ChatAgent
	cfg      strategy.Config
	tail     int
	branchID string

	summary *agent.SummaryAgent

	out   io.Writer
	debug bool
}

func (r *repl) init(ctx context.Context) error {
	if r.summary != nil {
		return r.summary.Init(ctx)
	}
	return r.chat.Init(ctx)
}

func (r *repl) modeName() string {
	if r.summary != nil {
		return agent.SummaryMode
	}
	return r.cfg.Kind().String()
}

func (r *repl) run(ctx context.Context, in lineReader) error {
	for ctx.Err() == nil {
		line, err := in.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		quit, err := r.handle(ctx, line)
		if err != nil {
			r.printError(err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

func (r *repl) printError(err error) {
	var overflow *llmctx.OverflowError
	if errors.As(err, &overflow) {
		fmt.Fprintf(r.out, "! %v\n", overflow)
		return
	}
	fmt.Fprintf(r.out, "error: %v\n", err)
}

// handle runs one input line and reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprint(r.out, helpText)
		return false, nil
	case "debug":
		r.debug = !r.debug
		fmt.Fprintf(r.out, "debug %t\n", r.debug)
		return false, nil
	case "reset":
		return false, r.reset(ctx)
	case "history":
		return false, r.history(ctx)
	case "summary":
		return false, r.showSummary(ctx)
	}

	if r.chat == nil {
		return false, fmt.Errorf("/%s is not available in summary mode", cmd)
	}

	switch cmd {
	case "strategy":
		return false, r.setStrategy(arg)
	case "facts":
		return false, r.facts(ctx)
	case "checkpoint":
		if err := r.chat.SetCheckpointAtCurrent(ctx); err != nil {
			return false, err
		}
		return false, r.branches(ctx)
	case "branch":
		if err := r.chat.CreateBranch(ctx, arg); err != nil {
			return false, err
		}
		return false, r.branches(ctx)
	case "switch":
		if err := r.chat.SwitchBranch(ctx, arg); err != nil {
			return false, err
		}
		return false, r.branches(ctx)
	case "branches":
		return false, r.branches(ctx)
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", cmd)
	}
}

func (r *repl) send(ctx context.Context, text string) error {
	var (
		reply *agent.Reply
		err   error
	)
	if r.summary != nil {
		reply, err = r.summary.HandleUserMessage(ctx, text)
	} else {
		reply, err = r.chat.HandleUserMessage(ctx, text, r.cfg)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, reply.Text)
	if r.debug {
		fmt.Fprintf(r.out, "[%s]\n%s\n", reply.DebugLabel, reply.Metrics)
	}
	return nil
}

func (r *repl) reset(ctx context.Context) error {
	var err error
	if r.summary != nil {
		err = r.summary.Reset(ctx)
	} else {
		err = r.chat.Reset(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, "conversation reset")
	return nil
}

func (r *repl) history(ctx context.Context) error {
	var (
		msgs []memory.Message
		err  error
	)
	if r.summary != nil {
		msgs, err = r.summary.Messages(ctx)
	} else {
		msgs, err = r.chat.History(ctx)
	}
	if err != nil {
		return err
	}
	printMessages(r.out, msgs)

	if r.chat == nil {
		return nil
	}
	active, err := r.chat.ActiveBranchID(ctx)
	if err != nil || active == "" {
		return err
	}
	branch, err := r.chat.BranchMessages(ctx, active)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "-- branch %s --\n", active)
	printMessages(r.out, branch)
	return nil
}

func (r *repl) showSummary(ctx context.Context) error {
	if r.summary == nil {
		return errors.New("/summary is only available in summary mode")
	}
	text, count, err := r.summary.Summary(ctx)
	if err != nil {
		return err
	}
	if text == "" {
		text = "(none)"
	}
	fmt.Fprintf(r.out, "summarized %d messages:\n%s\n", count, text)
	return nil
}

func (r *repl) setStrategy(name string) error {
	kind, err := strategy.ParseKind(name)
	if err != nil {
		return err
	}
	cfg, err := strategy.NewConfig(kind, r.tail, r.branchID)
	if err != nil {
		return err
	}
	r.cfg = cfg
	fmt.Fprintf(r.out, "strategy %s\n", kind)
	return nil
}

func (r *repl) facts(ctx context.Context) error {
	raw, err := r.chat.FactsJSON(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		fmt.Fprintln(r.out, "(no facts yet)")
		return nil
	}
	if obj, ok := parser.ExtractObject(raw); ok {
		raw = string(pretty.Pretty([]byte(obj)))
	}
	fmt.Fprintln(r.out, strings.TrimRight(raw, "\n"))
	return nil
}

func (r *repl) branches(ctx context.Context) error {
	ids, err := r.chat.Branches(ctx)
	if err != nil {
		return err
	}
	active, err := r.chat.ActiveBranchID(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(r.out, "(no branches)")
		return nil
	}
	for _, id := range ids {
		marker := " "
		if id == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, id)
	}
	return nil
}

func printMessages(w io.Writer, msgs []memory.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
	}
}
