package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/adrg/xdg"

	"github.com/aristath/consilium/internal/backend"
	"github.com/aristath/consilium/internal/config"
	"github.com/aristath/consilium/internal/debate"
	"github.com/aristath/consilium/internal/events"
	"github.com/aristath/consilium/internal/persistence"
	"github.com/aristath/consilium/internal/tui"
)

func main() {
	var (
		taskFlag   = flag.String("task", "", "task statement for the agent panel (required)")
		configFlag = flag.String("config", "", "path to a config file (overrides project config)")
		dbFlag     = flag.String("db", "", "path to the transcript database")
		plainFlag  = flag.Bool("plain", false, "stream events to stdout instead of the TUI")
		roundsFlag = flag.Int("max-rounds", 0, "override run.max_rounds")
		policyFlag = flag.String("policy", "", "override run.policy (unanimous, score, stable)")
		initFlag   = flag.Bool("init", false, "write the default config to the project path and exit")
	)
	flag.Parse()

	if *initFlag {
		if err := initConfig(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *taskFlag == "" && flag.NArg() > 0 {
		*taskFlag = flag.Arg(0)
	}
	if *taskFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: consilium -task \"...\" [flags]")
		os.Exit(2)
	}

	if err := run(*taskFlag, *configFlag, *dbFlag, *plainFlag, *roundsFlag, *policyFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initConfig writes the default configuration as a starting point for
// editing. Refuses to overwrite an existing file.
func initConfig(path string) error {
	if path == "" {
		path = config.ProjectPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("wrote default config to %s\n", path)
	return nil
}

func run(task, configPath, dbPath string, plain bool, maxRounds int, policyName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectPath := config.ProjectPath()
	if configPath != "" {
		projectPath = configPath
	}
	cfg, err := config.Load(config.GlobalPath(), projectPath)
	if err != nil {
		return err
	}
	if maxRounds > 0 {
		cfg.Run.MaxRounds = maxRounds
	}
	if policyName != "" {
		cfg.Run.Policy = policyName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	policy, err := debate.PolicyByName(cfg.Run.Policy, cfg.Run.AcceptThreshold)
	if err != nil {
		return err
	}

	// Kill stray generation subprocesses on shutdown.
	pm := backend.NewProcessManager()
	go func() {
		<-ctx.Done()
		if err := pm.KillAll(); err != nil {
			log.Printf("error killing subprocesses: %v", err)
		}
	}()

	members, closeAll, err := buildMembers(cfg, pm)
	if err != nil {
		return err
	}
	defer closeAll()

	bus := events.NewBus()
	defer bus.Close()

	if dbPath == "" {
		dbPath = filepath.Join(xdg.DataHome, "consilium", "transcripts.db")
	}
	store, err := persistence.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sink := persistence.NewSink(store, bus)
	sink.Start(ctx)
	defer sink.Wait()

	coord := debate.NewCoordinator(members, debate.CoordinatorConfig{
		Concurrency: cfg.Run.Concurrency,
		RetryBound:  cfg.Run.RetryBound,
	}, events.NewBusObserver(bus))

	engine, err := debate.NewEngine(coord, debate.EngineConfig{
		MaxRounds: cfg.Run.MaxRounds,
		Policy:    policy,
	}, events.NewBusObserver(bus))
	if err != nil {
		return err
	}

	type runResult struct {
		state debate.RunState
		err   error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		state, runErr := engine.Run(ctx, debate.Task{Statement: task})
		resultCh <- runResult{state: state, err: runErr}
		// Closing the bus ends the TUI and the plain printer.
		bus.Close()
	}()

	if plain {
		printEvents(bus.SubscribeAll(512))
	} else {
		p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return err
		}
	}

	result := <-resultCh
	printOutcome(result.state)
	return result.err
}

// buildMembers constructs the per-agent units from configuration. Each
// agent gets its own backend instance; agents on the same provider share a
// circuit breaker via the backend type key.
func buildMembers(cfg *config.Config, pm *backend.ProcessManager) (map[debate.Identity]debate.Member, func(), error) {
	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make(map[debate.Identity]debate.Member, len(names))
	var backends []backend.Backend
	closeAll := func() {
		for _, b := range backends {
			b.Close()
		}
	}

	for _, name := range names {
		agentCfg := cfg.Agents[name]
		providerCfg := cfg.Providers[agentCfg.Provider]

		b, err := backend.New(backend.Config{
			Type:     providerCfg.Type,
			Command:  providerCfg.Command,
			Provider: providerCfg.Provider,
			Model:    agentCfg.Model,
		}, pm)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("creating backend for agent %q: %w", name, err)
		}
		backends = append(backends, b)

		id := debate.Identity(name)
		members[id] = debate.Member{
			Agent:      debate.NewAgentUnit(id, agentCfg.Persona, b),
			Critic:     debate.NewCritiqueUnit(id, agentCfg.Persona, b),
			BreakerKey: b.Type(),
		}
	}

	return members, closeAll, nil
}

// printEvents streams bus events as log lines until the bus closes.
func printEvents(sub <-chan events.Event) {
	for evt := range sub {
		switch e := evt.(type) {
		case events.RunStartedEvent:
			log.Printf("run %s started with %d agents", e.ID, len(e.Agents))
		case events.RoundStartedEvent:
			log.Printf("round %d started", e.Round)
		case events.ArtifactProducedEvent:
			log.Printf("round %d: %s produced artifact (%d bytes)",
				e.Artifact.Round, e.Artifact.Agent, len(e.Artifact.Content))
		case events.CritiqueRecordedEvent:
			c := e.Critique
			log.Printf("round %d: %s -> %s score=%.2f verdict=%s",
				c.Round, c.Reviewer, c.Target, c.Score, c.Verdict)
		case events.RoundCompletedEvent:
			log.Printf("round %d completed", e.Round)
		case events.RunFinishedEvent:
			log.Printf("run %s finished: %s after %d round(s)", e.ID, e.Status, e.Rounds)
		}
	}
}

// printOutcome writes the final artifacts and status to stdout.
func printOutcome(state debate.RunState) {
	fmt.Printf("\nrun %s: %s (%d round(s))\n", state.ID, state.Status, len(state.Rounds))
	if state.Err != nil {
		fmt.Printf("failure: %v\n", state.Err)
	}

	latest := state.LatestRound()
	if latest == nil {
		return
	}

	for _, id := range state.Agents {
		artifact, ok := latest.Artifacts[id]
		if !ok {
			continue
		}
		fmt.Printf("\n=== %s (round %d) ===\n%s\n", id, artifact.Round, artifact.Content)
	}
}
