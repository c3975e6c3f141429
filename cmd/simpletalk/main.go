package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"simpletalk/internal/config"
	"simpletalk/internal/events"
	"simpletalk/internal/plugin"
	"simpletalk/internal/snapshot"
	"simpletalk/internal/talk"
	"simpletalk/internal/worldfile"
)

const logPrefix = "cmd:simpletalk"

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  simpletalk run <world.yaml> [message]  - Build a world and send a message to the current card")
	fmt.Println("  simpletalk repl [world.yaml]           - Interactive session on a world")
	fmt.Println("  simpletalk lex <script>                - Debug lexer output")
	fmt.Println("  simpletalk ast <script>                - Debug parser output")
	fmt.Println("  simpletalk save <world.yaml> <name>    - Build a world and store a snapshot")
	fmt.Println("  simpletalk restore <name> [message]    - Restore a snapshot and send a message")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// newEnv builds the collaborators for engine-backed subcommands.
var newEnv = newEnvironment

// run executes one subcommand and returns the exit code. Deferred cleanup runs before
// main exits.
func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	switch args[0] {
	case "lex":
		if len(args) < 2 {
			fmt.Println("Usage: simpletalk lex <script>")
			return 1
		}
		return lexDebug(args[1])
	case "ast":
		if len(args) < 2 {
			fmt.Println("Usage: simpletalk ast <script>")
			return 1
		}
		return astDebug(args[1])
	case "run", "repl", "save", "restore":
	default:
		usage()
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := newEnv(ctx, cfg)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %v", logPrefix, err))
		return 1
	}
	defer env.Close()

	rest := args[1:]
	switch args[0] {
	case "run":
		return runWorld(ctx, env, rest)
	case "repl":
		return repl(ctx, env, rest)
	case "save":
		return saveWorld(ctx, env, rest)
	default:
		return restoreWorld(ctx, env, rest)
	}
}

// environment holds the collaborators shared by every engine-backed subcommand.
type environment struct {
	cfg       *config.Config
	store     snapshot.Store
	plugins   *plugin.Registry
	publisher events.Publisher
	closers   []func()
}

func newEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	env := &environment{cfg: cfg, publisher: events.NoOpPublisher{}, plugins: plugin.NewRegistry()}

	if cfg.DatabaseURL != "" {
		pool, err := snapshot.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, pool.Close)
		env.store = snapshot.NewPGStore(pool)
	} else {
		env.store = snapshot.NewFileStore(cfg.SnapshotDir)
	}

	if cfg.InspectURL != "" {
		nc, err := events.Connect(cfg.InspectURL, cfg.InspectName)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = nc.Drain() })
		env.publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{Subject: cfg.InspectSubject})
	}

	client := &http.Client{Timeout: cfg.PluginTimeout}
	for _, entry := range cfg.PluginEndpoints {
		name, version, url, err := plugin.ParseEndpoint(entry)
		if err != nil {
			env.Close()
			return nil, err
		}
		svc := plugin.NewHTTPService(name, version, client)
		if _, err := svc.Load(ctx, url); err != nil {
			env.Close()
			return nil, err
		}
		if err := env.plugins.Register(svc); err != nil {
			env.Close()
			return nil, err
		}
	}
	return env, nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *environment) newSystem(out io.Writer, asker talk.Asker) *talk.System {
	logger := slog.Default()
	return talk.NewSystem(nil,
		talk.WithOutput(out),
		talk.WithAsker(asker),
		talk.WithLogger(logger),
		talk.WithPublisher(e.publisher),
		talk.WithPlugins(e.plugins),
		talk.WithPluginTimeout(e.cfg.PluginTimeout),
		talk.WithSnapshotSaver(&snapshot.Saver{Store: e.store, Logger: logger}),
	)
}

// lineAsker answers ask prompts from a line-oriented reader.
type lineAsker struct {
	in  *bufio.Reader
	out io.Writer
}

func (a *lineAsker) Ask(prompt string) (string, error) {
	fmt.Fprintf(a.out, "%s ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loadWorld(ctx context.Context, sys *talk.System, path string) error {
	def, err := worldfile.ParseFile(path)
	if err != nil {
		return err
	}
	return worldfile.Build(ctx, sys, def)
}

// open relays the opening messages for the current stack and card.
func open(ctx context.Context, sys *talk.System) error {
	h := sys.Hierarchy()
	if stack := h.CurrentStack(); stack != nil {
		if _, err := sys.Dispatch(ctx, talk.Message{Kind: talk.KindCommand, Name: "openStack", Target: stack.ID(), ShouldIgnore: true}); err != nil {
			return err
		}
	}
	if card := h.CurrentCard(); card != nil {
		if _, err := sys.Dispatch(ctx, talk.Message{Kind: talk.KindCommand, Name: "openCard", Target: card.ID(), ShouldIgnore: true}); err != nil {
			return err
		}
	}
	return sys.RunPending(ctx)
}

// entryPart is the part unaddressed messages go to: the current card, else the world.
func entryPart(sys *talk.System) *talk.Part {
	if card := sys.Hierarchy().CurrentCard(); card != nil {
		return card
	}
	return sys.World()
}

func sendAndDrain(ctx context.Context, sys *talk.System, message string) int {
	if message != "" {
		target := entryPart(sys)
		if _, err := sys.Send(ctx, target.ID(), message); err != nil {
			reportError(err)
			return 1
		}
	}
	if err := sys.RunPending(ctx); err != nil {
		reportError(err)
		return 1
	}
	return 0
}

func runWorld(ctx context.Context, env *environment, args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: simpletalk run <world.yaml> [message]")
		return 1
	}
	sys := env.newSystem(os.Stdout, &lineAsker{in: bufio.NewReader(os.Stdin), out: os.Stdout})
	if err := loadWorld(ctx, sys, args[0]); err != nil {
		reportError(err)
		return 1
	}
	if err := open(ctx, sys); err != nil {
		reportError(err)
		return 1
	}
	message := ""
	if len(args) > 1 {
		message = args[1]
	}
	return sendAndDrain(ctx, sys, message)
}

func saveWorld(ctx context.Context, env *environment, args []string) int {
	if len(args) < 2 {
		fmt.Println("Usage: simpletalk save <world.yaml> <name>")
		return 1
	}
	sys := env.newSystem(os.Stdout, nil)
	if err := loadWorld(ctx, sys, args[0]); err != nil {
		reportError(err)
		return 1
	}
	saver := &snapshot.Saver{Store: env.store, Logger: slog.Default()}
	if err := saver.SaveWorld(ctx, args[1], sys); err != nil {
		reportError(err)
		return 1
	}
	fmt.Printf("✅ Saved %s\n", args[1])
	return 0
}

func restoreWorld(ctx context.Context, env *environment, args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: simpletalk restore <name> [message]")
		return 1
	}
	sys := env.newSystem(os.Stdout, &lineAsker{in: bufio.NewReader(os.Stdin), out: os.Stdout})
	if err := snapshot.Load(ctx, env.store, args[0], sys); err != nil {
		reportError(err)
		return 1
	}
	fmt.Printf("📦 Restored %s\n", args[0])
	printTree(sys.World(), "  ")
	if len(args) < 2 {
		return 0
	}
	return sendAndDrain(ctx, sys, args[1])
}

// reportError prints engine errors with their source excerpt and anything else plainly.
func reportError(err error) {
	var te *talk.Error
	if errors.As(err, &te) {
		fmt.Fprint(os.Stderr, talk.FormatError(te))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printTree(p *talk.Part, indent string) {
	name := p.Name()
	if name != "" {
		name = fmt.Sprintf(" %q", name)
	}
	fmt.Printf("%s%s id %d%s\n", indent, p.Type(), p.ID(), name)
	for _, c := range p.Subparts() {
		printTree(c, indent+"  ")
	}
}

func lexDebug(filename string) int {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return 1
	}

	fmt.Printf("📄 Lexing: %s\n", filename)
	fmt.Println("─────────────────────────────────────────────────────────────────")
	fmt.Printf("%-4s %-3s %-15s %s\n", "Line", "Col", "Kind", "Value")
	fmt.Println("─────────────────────────────────────────────────────────────────")

	tokens, err := talk.Tokenize(filename, string(content))
	for _, token := range tokens {
		value := token.Value
		switch {
		case token.Type == "EOL":
			value = "\\n"
		case token.Type == "Whitespace":
			continue
		case len(value) > 50:
			value = value[:47] + "..."
		}
		fmt.Printf("%-4d %-3d %-15s %s\n", token.Line, token.Column, token.Type, value)
	}
	fmt.Println("─────────────────────────────────────────────────────────────────")
	if err != nil {
		reportError(err)
		return 1
	}
	fmt.Printf("✅ Lexed %d tokens\n", len(tokens))
	return 0
}

func astDebug(filename string) int {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return 1
	}

	handlers, err := talk.Compile(filename, string(content))
	if err != nil {
		reportError(err)
		return 1
	}

	fmt.Printf("🌲 Handlers: %s\n", filename)
	fmt.Println("═════════════════════════════════════════════════════════════════")
	for _, h := range handlers {
		fmt.Printf("🔧 %s (line %d, %d statements)\n", h.Name, h.Location.Line, len(h.Body))
		for _, line := range strings.Split(h.String(), "\n") {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println()
	}
	fmt.Println("═════════════════════════════════════════════════════════════════")
	fmt.Printf("✅ Compiled %d handlers\n", len(handlers))
	return 0
}
