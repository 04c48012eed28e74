// Package cmd provides CLI command implementations for argflow.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/argflow-go/internal/cache"
	"github.com/Benny93/argflow-go/internal/config"
	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/gaf"
	"github.com/Benny93/argflow-go/internal/influence"
	"github.com/Benny93/argflow-go/internal/logging"
	"github.com/Benny93/argflow-go/internal/storage"
	"github.com/Benny93/argflow-go/internal/stress"
	"github.com/Benny93/argflow-go/internal/view"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Env is bound to every command's Run method.
type Env struct {
	Config *config.Config
	In     io.Reader
	Out    io.Writer
}

func (e *Env) store() *storage.FileBackend {
	return storage.NewFileBackend(e.Config.ResourceDir)
}

func (e *Env) explanations() (*cache.Explanations, error) {
	return cache.New(e.store(), e.Config.CacheSize)
}

// openIndex opens the search index. A read-only open fails when no index
// has been built yet.
func (e *Env) openIndex(readOnly bool) (*storage.BadgerBackend, error) {
	dir := e.Config.IndexDir
	if readOnly {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index found at %s. Run 'argflow index' first", dir)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	index := storage.NewBadgerBackend()
	if err := index.Initialize(dir, readOnly); err != nil {
		return nil, fmt.Errorf("initializing index: %w", err)
	}
	return index, nil
}

func (e *Env) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(e.Out, format+"\n", args...)
}

func (e *Env) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(e.Out, format+"\n", args...)
}

func (e *Env) heading(format string, args ...any) {
	color.New(color.Bold).Fprintf(e.Out, format+"\n", args...)
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

// ExtractCmd builds an explanation from a precomputed influence snapshot.
type ExtractCmd struct {
	Snapshot  string `arg:"" type:"existingfile" help:"Influence snapshot file (JSON or YAML)"`
	Model     string `short:"m" required:"" help:"Model the explanation belongs to"`
	Name      string `help:"Explanation name (default: timestamp)"`
	LabelAttr string `default:"label" help:"Node attribute rendered as the text payload"`
}

// Run executes the extract command.
func (c *ExtractCmd) Run(env *Env) error {
	ctx := context.Background()

	snapshot, err := influence.LoadSnapshot(c.Snapshot)
	if err != nil {
		return err
	}

	extractor := gaf.NewExtractor(
		gaf.StaticInfluenceMapper{Snapshot: snapshot},
		gaf.GradientStrength,
		gaf.GradientCharacterisation,
		gaf.AttributeText(c.LabelAttr),
	)
	g, err := extractor.Extract(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("extracting explanation: %w", err)
	}

	ref, doc, err := env.store().Write(ctx, c.Model, c.Name, g)
	if err != nil {
		return err
	}

	env.success("✓ Stored %s", ref)
	printSummary(env, doc)
	return nil
}

// StressCmd stores a synthetic explanation for load testing.
type StressCmd struct {
	Model     string `short:"m" default:"stress" help:"Model the explanation belongs to"`
	Name      string `help:"Explanation name (default: timestamp)"`
	Arguments int    `short:"n" default:"4000" help:"Arguments of a single-layer graph"`
	Layers    int    `help:"Build a multi-layer graph with this many layers"`
	Width     int    `default:"100" help:"Arguments per layer of a multi-layer graph"`
	Seed      uint64 `default:"1" help:"Random seed"`
}

// Run executes the stress command.
func (c *StressCmd) Run(env *Env) error {
	var (
		g   *gaf.GAF
		err error
	)
	if c.Layers > 0 {
		g, err = stress.MultiLayer(c.Layers, c.Width, c.Seed)
	} else {
		g, err = stress.Single(c.Arguments, c.Seed)
	}
	if err != nil {
		return err
	}

	ref, doc, err := env.store().Write(context.Background(), c.Model, c.Name, g)
	if err != nil {
		return err
	}

	env.success("✓ Stored %s", ref)
	printSummary(env, doc)
	return nil
}

// ListCmd lists models, or the explanations of one model.
type ListCmd struct {
	Model string `arg:"" optional:"" help:"Model to list explanations of"`
}

// Run executes the list command.
func (c *ListCmd) Run(env *Env) error {
	ctx := context.Background()
	store := env.store()

	if c.Model == "" {
		models, err := store.Models(ctx)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			env.printf("No models found in %s\n", store.Root())
			return nil
		}
		env.heading("Models:")
		for _, m := range models {
			env.printf("  %-30s %10d bytes\n", m.Name, m.Size)
		}
		return nil
	}

	infos, err := store.Explanations(ctx, c.Model)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if len(infos) == 0 {
		env.printf("No explanations for %s\n", c.Model)
		return nil
	}
	env.heading("Explanations of %s:", c.Model)
	for _, info := range infos {
		env.printf("  %-30s %10d bytes\n", info.Name, info.Size)
	}
	return nil
}

// ShowCmd prints an explanation.
type ShowCmd struct {
	Ref  string `arg:"" help:"Explanation as model/name"`
	JSON bool   `help:"Print the document as JSON"`
}

// Run executes the show command.
func (c *ShowCmd) Run(env *Env) error {
	g, err := loadGraph(env, c.Ref)
	if err != nil {
		return err
	}
	doc := g.Serialize()
	if c.JSON {
		return printJSON(env, doc)
	}
	printSummary(env, doc)
	return nil
}

// PruneCmd prints the pruned view of an explanation.
type PruneCmd struct {
	Ref        string `arg:"" help:"Explanation as model/name"`
	Limit      *int   `help:"Total argument budget (default from config)"`
	LayerLimit *int   `help:"Arguments kept per layer (default from config)"`
	JSON       bool   `help:"Print the pruned document as JSON"`
}

// Run executes the prune command.
func (c *PruneCmd) Run(env *Env) error {
	g, err := loadGraph(env, c.Ref)
	if err != nil {
		return err
	}

	limit, layerLimit := env.Config.Prune.Limit, env.Config.Prune.LayerLimit
	if c.Limit != nil {
		limit = *c.Limit
	}
	if c.LayerLimit != nil {
		layerLimit = *c.LayerLimit
	}

	v := view.NewPruningView(g)
	v.Prune(limit, layerLimit)
	doc := v.Serialize()
	if c.JSON {
		return printJSON(env, doc)
	}

	env.heading("Pruned %s (limit %d, layer limit %d)", c.Ref, limit, layerLimit)
	printSummary(env, doc)
	for _, id := range doc.NodeIDs() {
		n := doc.Nodes[id]
		for _, child := range n.ChildIDs() {
			env.printf("  %s -> %s (%s)\n", id, child, n.Children[child].ContributionType)
		}
	}
	return nil
}

// InteractCmd runs one conversational interaction.
type InteractCmd struct {
	Ref       string `arg:"" help:"Explanation as model/name"`
	Target    string `arg:"" help:"Node to interact with"`
	Direction string `short:"d" enum:"from,to" default:"to" help:"What the target influences (from) or what influences it (to)"`
	Type      string `short:"t" help:"Only edges of this contribution type"`
	Limit     int    `short:"n" help:"Maximum results (0 for all)"`
}

// Run executes the interact command.
func (c *InteractCmd) Run(env *Env) error {
	g, err := loadGraph(env, c.Ref)
	if err != nil {
		return err
	}

	conv, err := view.NewConversationView(g, "", nil)
	if err != nil {
		return err
	}
	dir, err := view.ParseDirection(c.Direction)
	if err != nil {
		return err
	}
	result, err := conv.PerformInteraction(c.Target, dir, document.ContributionType(c.Type), c.Limit)
	if err != nil {
		return err
	}

	if dir == view.DirectionTo {
		env.heading("What influences %s:", c.Target)
	} else {
		env.heading("What %s influences:", c.Target)
	}
	if len(result) == 0 {
		env.printf("  None\n")
		return nil
	}
	for i, r := range result {
		n, _ := g.Node(r.Endpoint)
		env.printf("%d. %s (%s) strength %.3f", i+1, r.Endpoint, r.Contribution.ContributionType, n.StrengthOrZero())
		if n.Payload != nil && n.Payload.Pair == nil && n.Payload.Text != "" {
			env.printf("  %s", n.Payload.Text)
		}
		env.printf("\n")
	}
	return nil
}

// RolesCmd prints the roles inferred for the nodes of an influence snapshot.
type RolesCmd struct {
	Snapshot string `arg:"" type:"existingfile" help:"Influence snapshot file (JSON or YAML)"`
}

// Run executes the roles command.
func (c *RolesCmd) Run(env *Env) error {
	snapshot, err := influence.LoadSnapshot(c.Snapshot)
	if err != nil {
		return err
	}
	roles := influence.InferRoles(snapshot.Graph())

	env.printf("Starting:     %s\n", strings.Join(roles.Starting, ", "))
	env.printf("Intermediate: %s\n", strings.Join(roles.Intermediate, ", "))
	env.printf("Terminal:     %s\n", strings.Join(roles.Terminal, ", "))
	return nil
}

// DeleteCmd deletes an explanation.
type DeleteCmd struct {
	Ref   string `arg:"" help:"Explanation as model/name"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the delete command.
func (c *DeleteCmd) Run(env *Env) error {
	ref, err := storage.ParseRef(c.Ref)
	if err != nil {
		return err
	}

	if !c.Force {
		env.printf("Delete explanation %s? [y/N] ", ref)
		response, _ := bufio.NewReader(env.In).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			env.printf("Aborted\n")
			return nil
		}
	}

	if err := env.store().Delete(context.Background(), ref); err != nil {
		return err
	}
	env.success("Deleted %s", ref)
	return nil
}

// IndexCmd rebuilds the search index from the resource directory.
type IndexCmd struct{}

// Run executes the index command.
func (c *IndexCmd) Run(env *Env) error {
	ctx := context.Background()

	index, err := env.openIndex(false)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	docs, skipped, err := storage.LoadAll(ctx, env.store())
	if err != nil {
		return err
	}
	for _, ref := range skipped {
		env.warn("⚠ Skipped unreadable explanation %s", ref)
	}
	if err := index.BulkLoad(ctx, docs); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	env.success("✓ Indexed %d explanations into %s", index.ExplanationCount(), env.Config.IndexDir)
	return nil
}

// SearchCmd searches the node texts of all indexed explanations.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(env *Env) error {
	index, err := env.openIndex(true)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	results, err := index.Search(context.Background(), c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		env.printf("No results found\n")
		return nil
	}

	for i, r := range results {
		env.printf("\n%d. %s node %s (%s)\n", i+1, r.Ref, r.NodeID, r.NodeType)
		env.printf("   Score: %.3f\n", r.Score)
		if r.Snippet != "" {
			env.printf("   %s\n", r.Snippet)
		}
	}
	return nil
}

// Helper functions

func loadGraph(env *Env, raw string) (*view.ArgumentationGraph, error) {
	ref, err := storage.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	doc, err := env.store().Get(context.Background(), ref)
	if err != nil {
		return nil, err
	}
	return view.NewArgumentationGraph(doc)
}

func printSummary(env *Env, doc *document.Document) {
	arguments := 0
	for _, n := range doc.Nodes {
		if n.NodeType == document.NodeRegular {
			arguments++
		}
	}

	env.printf("  Name:         %s\n", doc.Name)
	env.printf("  Inputs:       %s\n", strings.Join(doc.Input, ", "))
	env.printf("  Conclusions:  %s\n", strings.Join(doc.Conclusion, ", "))
	env.printf("  Arguments:    %d\n", arguments)
	if doc.TotalNodes != nil {
		env.printf("  Total:        %d\n", *doc.TotalNodes)
	}
	for _, id := range doc.Conclusion {
		n, ok := doc.Nodes[id]
		if !ok {
			continue
		}
		text := ""
		if n.Payload != nil && n.Payload.Pair == nil {
			text = n.Payload.Text
		}
		if n.Certainty != nil {
			env.printf("  Prediction:   %s (%.1f%%)\n", text, *n.Certainty)
		}
	}
}

func printJSON(env *Env, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	env.printf("%s\n", data)
	return nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version information"`
	Config    string           `short:"c" type:"path" help:"Config file (default: ./argflow.yaml if present)"`
	LogLevel  string           `enum:",debug,info,warn,error" default:"" help:"Override the configured log level"`
	LogFormat string           `enum:",text,json" default:"" help:"Override the configured log format"`

	// Commands
	Extract  ExtractCmd  `cmd:"" help:"Build an explanation from an influence snapshot"`
	Stress   StressCmd   `cmd:"" help:"Store a synthetic explanation for load testing"`
	List     ListCmd     `cmd:"" help:"List models or the explanations of a model"`
	Show     ShowCmd     `cmd:"" help:"Show an explanation"`
	Prune    PruneCmd    `cmd:"" help:"Show the pruned view of an explanation"`
	Interact InteractCmd `cmd:"" help:"Ask what influences a node or what it influences"`
	Roles    RolesCmd    `cmd:"" help:"Infer node roles of an influence snapshot"`
	Delete   DeleteCmd   `cmd:"" help:"Delete an explanation"`
	Index    IndexCmd    `cmd:"" help:"Rebuild the search index"`
	Search   SearchCmd   `cmd:"" help:"Search node texts of all explanations"`
	Setup    SetupCmd    `cmd:"" help:"Configure MCP for Claude Code / Cursor / Qwen"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server with optional watch mode"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("argflow"),
		kong.Description("Argumentative explanations of model predictions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	// stdout carries command output and MCP messages
	logging.Init(level, cfg.Log.Format, os.Stderr)

	return kongCtx.Run(&Env{Config: cfg, In: os.Stdin, Out: os.Stdout})
}

// absResourceDir resolves the resource directory for messages and watchers.
func absResourceDir(env *Env) string {
	abs, err := filepath.Abs(env.Config.ResourceDir)
	if err != nil {
		return env.Config.ResourceDir
	}
	return abs
}
