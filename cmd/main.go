package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/config"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/history"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/relay"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", getEnvOrDefault("BATTLESHIPS_CONFIG", ""), "YAML config file")
	addr       = flag.String("addr", getEnvOrDefault("BATTLESHIPS_ADDR", ""), "Address to listen on or connect to, overriding the config")
	auto       = flag.Bool("auto", false, "Pick targets automatically instead of reading them from stdin")
	manual     = flag.Bool("manual", false, "Place the fleet by hand instead of randomly")
	seed       = flag.Int64("seed", 0, "Random seed for placement and automatic targets, 0 seeds from the clock")
	dev        = flag.Bool("dev", false, "Human readable debug logging")
)

// getEnvOrDefault tries to get an Environment variable or returns a default
// if it doesn't exist
func getEnvOrDefault(key string, def string) string {
	env, ok := os.LookupEnv(key)
	if ok {
		return env
	}
	return def
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] host|join|relay|history\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	var log *zap.Logger
	if *dev {
		log, _ = zap.NewDevelopment()
	} else {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("unable to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch flag.Arg(0) {
	case "host":
		err = play(ctx, cfg, log, game.Host)
	case "join":
		err = play(ctx, cfg, log, game.Guest)
	case "relay":
		err = serveRelay(ctx, cfg, log)
	case "history":
		err = printHistory(cfg, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error(fmt.Sprintf("%s failed", flag.Arg(0)), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.ParseConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *addr != "" {
		cfg.Listen = *addr
		cfg.Connect = *addr
	}
	return cfg, cfg.Validate()
}

func newRand() *rand.Rand {
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(s))
}

// play runs one game as role. In relay mode the relay assigns the role.
func play(ctx context.Context, cfg *config.Config, log *zap.Logger, role game.Role) error {
	rng := newRand()
	term := newTerminal(os.Stdin, os.Stdout)

	var own *board.Board
	var err error
	if *manual {
		own, err = term.placeFleet(ctx, cfg.Manifest())
	} else {
		own, err = fleet.NewGenerator(rng, cfg.PlacementAttempts, cfg.PlacementRounds).Generate(cfg.Manifest())
	}
	if err != nil {
		return fmt.Errorf("placing fleet: %w", err)
	}

	conn, role, err := connect(ctx, cfg, log, role)
	if err != nil {
		return err
	}
	defer conn.Close()

	recorder := history.Discard
	if cfg.History != "" {
		recorder = history.NewFileStore(cfg.History, log)
	}
	var targets game.TargetSource = term
	if *auto {
		targets = game.NewRandomTargets(rng)
	}

	s := game.NewSession(conn, role, own, cfg.GameConfig(),
		game.WithLogger(log),
		game.WithEventHandler(term.printEvent),
		game.WithRecorder(recorder),
	)
	fmt.Fprintf(term.out, "Playing as %s. Your fleet:\n%s", role, board.Render(own))

	outcome, err := s.Run(ctx, targets)
	fmt.Fprintf(term.out, "Game over: %s after %d shots and %d hits\n", outcome, s.Shots(), s.Hits())
	return err
}

// connect finds an opponent: directly for peer games, through the relay
// otherwise.
func connect(ctx context.Context, cfg *config.Config, log *zap.Logger, role game.Role) (*comms.Session, game.Role, error) {
	opts := cfg.CommsOptions(log)

	if cfg.Mode == config.ModeRelay {
		conn, err := dial(ctx, cfg, opts)
		if err != nil {
			return nil, role, err
		}
		var match string
		role, match, err = awaitMatch(ctx, conn, cfg, log)
		if err != nil {
			conn.Close()
			return nil, role, err
		}
		fmt.Printf("Joined match %s as %s\n", match, role)
		return conn, role, nil
	}

	if role == game.Guest {
		conn, err := dial(ctx, cfg, opts)
		return conn, role, err
	}

	l, err := listen(cfg, opts)
	if err != nil {
		return nil, role, err
	}
	defer l.Close()

	accepted := comms.AcceptAsync(ctx, l)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	fmt.Printf("Waiting for an opponent on %s\n", l.Addr())
	for {
		select {
		case r := <-accepted:
			return r.Session, role, r.Err
		case <-ticker.C:
			fmt.Println("Still waiting for an opponent...")
		}
	}
}

// awaitMatch reads the relay greeting and checks the match id it carries.
func awaitMatch(ctx context.Context, t game.Transport, cfg *config.Config, log *zap.Logger) (game.Role, string, error) {
	role, match, err := game.AwaitHello(ctx, t, cfg.GameConfig(), log)
	if err != nil {
		return role, "", err
	}
	if !relay.IsValidMatchID(match) {
		return role, "", fmt.Errorf("%w: relay sent match id %q", game.ErrProtocolViolation, match)
	}
	return role, match, nil
}

func dial(ctx context.Context, cfg *config.Config, opts comms.Options) (*comms.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if cfg.Transport == config.TransportWebsocket {
		return comms.DialSocket(ctx, cfg.URL(), opts)
	}
	return comms.Dial(ctx, cfg.Connect, opts)
}

func listen(cfg *config.Config, opts comms.Options) (comms.Listener, error) {
	if cfg.Transport == config.TransportWebsocket {
		return comms.ListenSocket(cfg.Listen, cfg.Path, opts)
	}
	return comms.Listen(cfg.Listen, opts)
}

func serveRelay(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	l, err := listen(cfg, cfg.CommsOptions(log))
	if err != nil {
		return err
	}
	defer l.Close()

	log.Info(fmt.Sprintf("Starting relay on %s", l.Addr()))
	s := relay.NewServer(l, cfg.GameConfig(), log)
	s.MaxMatches = cfg.MaxMatches
	return s.Serve(ctx)
}

func printHistory(cfg *config.Config, log *zap.Logger) error {
	if cfg.History == "" {
		return fmt.Errorf("no history file configured")
	}
	store := history.NewFileStore(cfg.History, log)
	records, err := store.Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No games recorded in %s\n", store.Path())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tROLE\tOUTCOME\tSHOTS\tACCURACY\tDURATION\tREASON")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f%%\t%s\t%s\n",
			r.FinishedAt.Format(time.RFC3339), r.Role, r.Outcome, r.Shots, r.Accuracy,
			r.Duration().Round(time.Second), r.Reason)
	}
	w.Flush()
	fmt.Println(history.Summarize(records))
	return nil
}
