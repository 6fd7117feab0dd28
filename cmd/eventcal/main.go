package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cyp0633/eventcal/cache"
	cacheredis "github.com/cyp0633/eventcal/cache/redis"
	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/eventlist"
	"github.com/cyp0633/eventcal/feed"
	"github.com/cyp0633/eventcal/internal/config"
	appLog "github.com/cyp0633/eventcal/internal/log"
	"github.com/cyp0633/eventcal/internal/metrics"
	"github.com/cyp0633/eventcal/storage"
	"github.com/cyp0633/eventcal/storage/memory"
	"github.com/cyp0633/eventcal/storage/mysql"
	"github.com/cyp0633/eventcal/timezone"
)

// flagConfig holds CLI flag values; empty values keep the config defaults.
type flagConfig struct {
	configPath string
	envPath    string
	eventsPath string
	display    string
	number     int
	order      string
	format     string
	now        string
}

func main() {
	flags := parseFlags(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flags, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "eventcal:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) flagConfig {
	var cfg flagConfig

	fs := flag.NewFlagSet("eventcal", flag.ExitOnError)
	fs.StringVar(&cfg.configPath, "config", "eventcal.yaml", "Path to config file (created with defaults if missing)")
	fs.StringVar(&cfg.envPath, "env", ".env", "Optional .env file with EVENTCAL_* overrides")
	fs.StringVar(&cfg.eventsPath, "events", "", "iCalendar file imported into the store before listing")
	fs.StringVar(&cfg.display, "display", "", "Comma-separated classes: upcoming, past, in-progress")
	fs.IntVar(&cfg.number, "number", 0, "Maximum number of occurrences (capped at 100)")
	fs.StringVar(&cfg.order, "order", "", "ASC or DESC by end time")
	fs.StringVar(&cfg.format, "format", "text", "Output format: text, ics or xcal")
	fs.StringVar(&cfg.now, "now", "", "Evaluate the list at this RFC 3339 time instead of the clock")
	fs.Parse(args)

	return cfg
}

// run wires config, store, cache and list service, then prints one list.
func run(ctx context.Context, flags flagConfig, stdout, stderr io.Writer) error {
	if err := config.LoadEnv(flags.envPath); err != nil {
		return err
	}
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := appLog.New(conf.Log.Level, conf.Log.Format)
	logger.SetOutput(stderr)
	logger.WithFields(logrus.Fields{
		"config_path": flags.configPath,
		"timezone":    conf.Timezone,
		"storage":     conf.Storage.Driver,
		"cache":       conf.Cache.Backend,
	}).Debug("effective config")

	now := time.Now
	if flags.now != "" {
		at, err := time.Parse(time.RFC3339, flags.now)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
		now = func() time.Time { return at }
	}

	store, closeStore, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	listCache, closeCache, err := openCache(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := eventlist.NewService(store, listCache,
		eventlist.WithClock(now),
		eventlist.WithLogger(logger),
		eventlist.WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	store = storage.Observe(store, svc.Listener())

	if flags.eventsPath != "" {
		n, err := importEvents(ctx, store, flags.eventsPath)
		if err != nil {
			return err
		}
		logger.WithField("count", n).Info("imported events")
	}

	args := conf.DisplayArgs()
	if flags.display != "" {
		args.Display = strings.Split(flags.display, ",")
	}
	if flags.number != 0 {
		args.Number = flags.number
	}
	if flags.order != "" {
		args.Order = flags.order
	}

	list, err := svc.List(ctx, args, storage.Filter{Status: "publish"})
	if err != nil {
		return err
	}

	switch flags.format {
	case "ics":
		return feed.WriteICS(stdout, list, now())
	case "xcal":
		return feed.WriteXCal(stdout, list, now())
	case "text", "":
		return writeText(stdout, list, timezone.ZoneOrUTC(conf.Timezone))
	default:
		return fmt.Errorf("unknown format %q", flags.format)
	}
}

func openStore(ctx context.Context, conf *config.Config) (storage.Store, func(), error) {
	switch conf.Storage.Driver {
	case config.DriverMySQL:
		db, err := mysql.Open(conf.Storage.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		store := mysql.New(db, conf.Storage.TablePrefix)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return store, func() { db.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func openCache(ctx context.Context, conf *config.Config, logger logrus.FieldLogger) (cache.Store, func(), error) {
	switch conf.Cache.Backend {
	case config.BackendRedis:
		client, err := cacheredis.Dial(ctx, conf.Cache.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return cacheredis.New(client, cacheredis.DefaultPrefix, conf.CacheTTL()), func() { client.Close() }, nil
	default:
		store, err := cache.NewMemoryStore(cache.Config{
			TTL:             conf.CacheTTL(),
			MaxEntries:      conf.Cache.MaxEntries,
			CleanupSchedule: conf.Cache.CleanupSchedule,
		}, cache.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func importEvents(ctx context.Context, store storage.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	events, err := feed.ReadICS(f)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	for i := range events {
		if err := store.SaveEvent(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("save %q: %w", events[i].Title, err)
		}
	}
	return len(events), nil
}

// writeText prints one occurrence per line in the display zone.
func writeText(w io.Writer, list []event.Occurrence, loc *time.Location) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no events")
		return err
	}
	for _, o := range list {
		var when string
		if o.Event.IsAllDay() {
			when = o.StartAt.In(loc).Format("2006-01-02") + " all day"
		} else {
			when = o.StartAt.In(loc).Format("2006-01-02 15:04") + " - " + o.EndAt.In(loc).Format("15:04")
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", when, o.Event.Title); err != nil {
			return err
		}
	}
	return nil
}
