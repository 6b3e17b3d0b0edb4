package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/auziqni/learn-shimeji-sub000/internal/altfmt"
	"github.com/auziqni/learn-shimeji-sub000/internal/behavior"
	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/config"
	"github.com/auziqni/learn-shimeji-sub000/internal/descriptor"
	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
	"github.com/auziqni/learn-shimeji-sub000/internal/monitor"
	"github.com/auziqni/learn-shimeji-sub000/internal/observe"
	"github.com/auziqni/learn-shimeji-sub000/internal/pack"
	"github.com/auziqni/learn-shimeji-sub000/internal/playback"
	"github.com/auziqni/learn-shimeji-sub000/internal/scenario"
	"github.com/auziqni/learn-shimeji-sub000/internal/sprite"
)

const Version = "v0.3.0"

var (
	configPath string
	assetsDir  string

	cfg config.Config
	log *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shimeji",
		Short: "Shimeji - desktop sprite pack toolkit and playback engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.Path()
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
			log = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				fmt.Println(Version)
				return
			}
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to settings file")
	rootCmd.PersistentFlags().StringVar(&assetsDir, "assets", "", "Path to the assets directory holding sprite packs")
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(packsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default settings file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		if _, err := config.Init(path); err != nil {
			return err
		}
		fmt.Printf("Settings at %s\n", path)
		return nil
	},
}

func resolveAssets() (string, error) {
	explicit := assetsDir
	if explicit == "" {
		explicit = cfg.AssetsDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return pack.FindAssetsDir(explicit, cwd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [pack-dir...]",
	Short: "Audit sprite packs and report their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := collectValidations(cmd.Context(), args)
		if err != nil {
			return err
		}

		broken := 0
		for _, v := range results {
			fmt.Printf("%-20s %s\n", v.Name, v.Status)
			for _, e := range v.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			for _, w := range v.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			for _, f := range v.MissingFiles {
				fmt.Printf("  missing: %s\n", f)
			}
			if v.MissingTotal > len(v.MissingFiles) {
				fmt.Printf("  ... and %d more missing files\n", v.MissingTotal-len(v.MissingFiles))
			}
			if v.Status == pack.StatusBroken {
				broken++
			}
		}
		if broken > 0 {
			return fmt.Errorf("%d of %d packs are broken", broken, len(results))
		}
		return nil
	},
}

func collectValidations(ctx context.Context, args []string) ([]*pack.Validation, error) {
	if len(args) > 0 {
		results := make([]*pack.Validation, 0, len(args))
		for _, dir := range args {
			results = append(results, pack.Validate(dir))
		}
		return results, nil
	}
	dir, err := resolveAssets()
	if err != nil {
		return nil, err
	}
	loader := pack.NewLoader(logging.Component(log, "pack"), nil)
	return loader.LoadAll(ctx, dir)
}

type packSummary struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Actions    int            `json:"actions"`
	Behaviors  int            `json:"behaviors"`
	Categories map[string]int `json:"categories,omitempty"`
	Missing    int            `json:"missing,omitempty"`
	Warnings   int            `json:"warnings,omitempty"`
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "List discovered sprite packs",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := collectValidations(cmd.Context(), nil)
		if err != nil {
			return err
		}

		summaries := make([]packSummary, 0, len(results))
		for _, v := range results {
			s := packSummary{
				Name:     v.Name,
				Status:   string(v.Status),
				Missing:  v.MissingTotal,
				Warnings: len(v.Warnings),
			}
			if v.Set != nil {
				s.Actions = len(v.Set.Actions)
				s.Behaviors = len(v.Set.Behaviors)
				s.Categories = make(map[string]int)
				for _, b := range v.Set.Behaviors {
					s.Categories[string(b.Category)]++
				}
			}
			summaries = append(summaries, s)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		for _, s := range summaries {
			fmt.Printf("%-20s %-8s %3d actions %3d behaviors\n",
				s.Name, s.Status, s.Actions, s.Behaviors)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <pack-dir>",
	Short: "Write a pack's JSON descriptor snapshot (conf/data.json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := pack.Validate(args[0])
		if v.Status == pack.StatusBroken {
			return fmt.Errorf("pack %s is broken: %v", v.Name, v.Errors)
		}

		if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
			data, err := altfmt.Encode(v.Set)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		path := filepath.Join(args[0], "conf", "data.json")
		wrote, err := altfmt.WriteFile(path, v.Set)
		if err != nil {
			return err
		}
		if !wrote {
			fmt.Printf("%s already exists, not overwriting\n", path)
			return nil
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play <pack-name>",
	Short: "Run scripted playback for a pack without a display",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

func init() {
	packsCmd.Flags().Bool("json", false, "Emit machine-readable output")
	convertCmd.Flags().Bool("stdout", false, "Print the JSON descriptor instead of writing it")

	playCmd.Flags().String("scenario", "", "Path to a scenario YAML file")
	playCmd.Flags().String("behavior", "", "Starting behavior (default: weighted random)")
	playCmd.Flags().Int("ticks", 300, "Number of updates to run")
	playCmd.Flags().Float64("delta", 1.0/descriptor.NominalFrameRate, "Seconds advanced per update")
	playCmd.Flags().Int64("seed", 0, "Random seed (0 seeds from the clock)")
	playCmd.Flags().Bool("mute", false, "Suppress frame sounds")
	playCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while playing")
}

// logSound satisfies the playback sound collaborator without an audio
// device. Runs under `play` are headless, so sounds become log lines.
type logSound struct {
	log *logrus.Entry
}

func (s *logSound) Play(path string, volumeDB int) {
	s.log.WithFields(logrus.Fields{"sound": path, "volume": volumeDB}).Info("sound")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var scn *scenario.Scenario
	if path, _ := cmd.Flags().GetString("scenario"); path != "" {
		var err error
		if scn, err = scenario.ReadFile(path); err != nil {
			return err
		}
	}

	packName := ""
	if len(args) == 1 {
		packName = args[0]
	} else if scn != nil {
		packName = scn.Pack
	}
	if packName == "" {
		return fmt.Errorf("a pack name or a scenario is required")
	}

	ticks, _ := cmd.Flags().GetInt("ticks")
	delta, _ := cmd.Flags().GetFloat64("delta")
	seed, _ := cmd.Flags().GetInt64("seed")
	mute, _ := cmd.Flags().GetBool("mute")
	startBehavior, _ := cmd.Flags().GetString("behavior")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if scn != nil {
		ticks = scn.Ticks
		delta = scn.Delta
		if scn.Seed != 0 {
			seed = scn.Seed
		}
		if startBehavior == "" {
			startBehavior = scn.Behavior
		}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	assetsRoot, err := resolveAssets()
	if err != nil {
		return err
	}
	packDir := filepath.Join(assetsRoot, packName)
	v := pack.Validate(packDir)
	if v.Status == pack.StatusBroken {
		return fmt.Errorf("pack %s is broken: %v", v.Name, v.Errors)
	}

	eval := condition.NewEvaluator(logging.Component(log, "condition"))
	cache := sprite.NewCache(cfg.CacheMaxEntries, cfg.CacheMaxBytes(),
		logging.Component(log, "sprite"), sprite.WithMetrics(metrics))
	table := behavior.NewTable(v.Set.Behaviors, eval, rand.New(rand.NewSource(seed)))

	mon := monitor.New(cfg.MonitorInterval, logging.Component(log, "monitor"))
	mon.Start(ctx)
	defer mon.Stop()

	player := playback.NewPlayer(packDir, cache, eval, &logSound{logging.Component(log, "sound")},
		playback.WithLogger(logging.Component(log, "playback")),
		playback.WithMetrics(metrics))
	defer player.Close()
	player.SetMuted(mute || cfg.Mute)

	st := condition.State{}
	mon.Apply(st)

	current, err := pickStart(v.Set, table, startBehavior, st)
	if err != nil {
		return err
	}
	if err := enterBehavior(player, v.Set, current, st); err != nil {
		return err
	}
	playLog := logging.Component(log, "play")
	playLog.WithFields(logrus.Fields{"pack": v.Name, "behavior": current.Name, "seed": seed}).Info("starting")

	for tick := 0; tick < ticks; tick++ {
		if err := ctx.Err(); err != nil {
			playLog.Info("interrupted")
			break
		}

		if scn != nil {
			for _, e := range scn.At(tick) {
				e.Apply(st)
				if e.Behavior != "" {
					next, ok := v.Set.Behaviors[e.Behavior]
					if !ok {
						return fmt.Errorf("scenario names unknown behavior %q", e.Behavior)
					}
					current = &next
					if err := enterBehavior(player, v.Set, current, st); err != nil {
						return err
					}
				}
			}
		}

		mon.Apply(st)
		player.Refresh(st)
		player.Update(delta)

		vel := player.CurrentVelocity()
		st[condition.KeyX] += vel.X
		st[condition.KeyY] += vel.Y

		if player.Finished() {
			name, err := table.Next(current, st)
			if err != nil {
				playLog.WithError(err).Warn("no next behavior, stopping")
				break
			}
			next := v.Set.Behaviors[name]
			current = &next
			if err := enterBehavior(player, v.Set, current, st); err != nil {
				return err
			}
			playLog.WithField("behavior", current.Name).Debug("transition")
		}
	}

	stats := cache.Stats()
	playLog.WithFields(logrus.Fields{
		"behavior":   current.Name,
		"frame":      player.FrameIndex(),
		"cacheHits":  stats.Hits,
		"cacheMiss":  stats.Misses,
		"loadErrors": stats.LoadErrors,
	}).Info("finished")
	fmt.Printf("Played %d ticks of %s, ended in behavior %s\n", ticks, v.Name, current.Name)
	return nil
}

func pickStart(set *descriptor.Set, table *behavior.Table, name string, st condition.State) (*descriptor.Behavior, error) {
	if name != "" {
		b, ok := set.Behaviors[name]
		if !ok {
			return nil, fmt.Errorf("unknown behavior %q; pack has %v", name, set.BehaviorNames())
		}
		return &b, nil
	}
	picked, err := table.Next(nil, st)
	if err != nil {
		return nil, fmt.Errorf("no startable behavior: %w", err)
	}
	b := set.Behaviors[picked]
	return &b, nil
}

func enterBehavior(player *playback.Player, set *descriptor.Set, b *descriptor.Behavior, st condition.State) error {
	actionName := b.Action
	if actionName == "" {
		actionName = b.Name
	}
	action, ok := set.Actions[actionName]
	if !ok {
		return fmt.Errorf("behavior %q references unknown action %q", b.Name, actionName)
	}
	player.SetAction(&action, st)
	player.Play()
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Component(log, "metrics").WithError(err).Warn("metrics server stopped")
	}
}
