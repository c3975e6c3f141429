package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"simpletalk/internal/talk"
)

const (
	historyFile = ".simpletalk_history"
	promptMain  = "talk> "
	promptCont  = "....> "
)

// linerAsker answers ask prompts through the REPL's line editor.
type linerAsker struct {
	ln *liner.State
}

func (a *linerAsker) Ask(prompt string) (string, error) {
	return a.ln.Prompt(prompt + " ")
}

func repl(ctx context.Context, env *environment, args []string) int {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sys := env.newSystem(os.Stdout, &linerAsker{ln: ln})
	if len(args) > 0 {
		if err := loadWorld(ctx, sys, args[0]); err != nil {
			reportError(err)
			return 1
		}
		if err := open(ctx, sys); err != nil {
			reportError(err)
		}
	}

	part := entryPart(sys)
	fmt.Printf("Executing on %s id %d. Type :help for commands.\n", part.Type(), part.ID())
	for {
		code, ok := readStatements(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			var quit bool
			part, quit = replCommand(sys, part, trimmed)
			if quit {
				return 0
			}
			continue
		}

		v, err := sys.Execute(ctx, part.ID(), code)
		if err != nil {
			reportError(err)
		} else if v != nil {
			fmt.Println(talk.FormatValue(v))
		}
		if err := sys.RunPending(ctx); err != nil {
			reportError(err)
		}
		// The executing part may have been deleted by the statement itself.
		if _, ok := sys.Part(part.ID()); !ok {
			part = entryPart(sys)
		}
	}
}

func replCommand(sys *talk.System, part *talk.Part, line string) (*talk.Part, bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return part, true
	case ":help":
		fmt.Println(":part <id>     execute statements on another part")
		fmt.Println(":tree          show the part hierarchy")
		fmt.Println(":handlers      show handlers reachable from the executing part")
		fmt.Println(":history       show the last locals of every handler")
		fmt.Println(":globals       show global variables")
		fmt.Println(":quit          leave")
	case ":part":
		if len(fields) < 2 {
			fmt.Printf("executing on %s id %d\n", part.Type(), part.ID())
			break
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %q is not a part id\n", fields[1])
			break
		}
		p, ok := sys.Part(talk.PartID(id))
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: no part with id %d\n", id)
			break
		}
		return p, false
	case ":tree":
		printTree(sys.World(), "")
	case ":handlers":
		reg, err := sys.Registry(part.ID())
		if err != nil {
			reportError(err)
			break
		}
		names := make([]string, 0, len(reg))
		for n := range reg {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			d := reg[n]
			fmt.Printf("  %-16s %s id %d override=%v private=%v\n", n, d.PartType, d.PartID, d.Override, d.Private)
		}
	case ":history":
		h := sys.History()
		for _, name := range h.Handlers() {
			locals, _ := h.Lookup(name)
			fmt.Printf("  %s: %s\n", name, formatLocals(locals))
		}
	case ":globals":
		for _, name := range sys.Stack().GlobalNames() {
			v, _ := sys.Stack().Global(name)
			fmt.Printf("  %s = %s\n", name, talk.FormatValue(v))
		}
	default:
		fmt.Printf("unknown command %s. Type :help for commands.\n", fields[0])
	}
	return part, false
}

func formatLocals(locals map[string]talk.Value) string {
	names := make([]string, 0, len(locals))
	for n := range locals {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + talk.FormatValue(locals[n])
	}
	return strings.Join(parts, " ")
}

// readStatements reads one statement, continuing while an if or repeat block is open.
func readStatements(ln *liner.State) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		depth += blockDelta(line)
		if depth <= 0 || strings.TrimSpace(line) == "" {
			return b.String(), true
		}
	}
}

func blockDelta(line string) int {
	words := strings.Fields(strings.ToLower(line))
	if len(words) == 0 || strings.HasPrefix(words[0], "--") {
		return 0
	}
	switch {
	case words[0] == "end":
		return -1
	case words[0] == "repeat":
		return 1
	case words[0] == "if" && words[len(words)-1] == "then":
		return 1
	}
	return 0
}
