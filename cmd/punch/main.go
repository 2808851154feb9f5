package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tverberg/punch/internal/config"
	"github.com/tverberg/punch/internal/report"
	"github.com/tverberg/punch/internal/stats"
	"github.com/tverberg/punch/internal/store"
	"github.com/tverberg/punch/internal/timer"
	"github.com/tverberg/punch/internal/web"
)

func main() {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	configPathFlag := flag.String("config", "", "config file path")
	storageFlag := flag.String("storage", "", "storage backend: sqlite, badger, memory")
	dbPathFlag := flag.String("db", "", "database path")
	portFlag := flag.Int("port", 0, "web server port")
	reportFlag := flag.String("report", "", "one-shot report: today, week, month, range")
	fromFlag := flag.String("from", "", "report range start (2006-01-02, with -report range)")
	toFlag := flag.String("to", "", "report range end (2006-01-02, with -report range)")
	pdfFlag := flag.String("pdf", "", "write the report as a PDF to this path")
	selectedFlag := flag.String("selected", "", "comma-separated node ids to break out")
	excludeZeroFlag := flag.Bool("exclude-zero", false, "exclude zero-activity days from averages")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg = config.ApplyEnv(cfg)

	if *storageFlag != "" {
		cfg.Storage = *storageFlag
	}
	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "punch.db")
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	excludeZero := cfg.ExcludeZeroDays
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "exclude-zero" {
			excludeZero = *excludeZeroFlag
		}
	})

	if err := config.Save(cfgPath, cfg); err != nil {
		log.Fatal(err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	if *reportFlag != "" {
		if err := runReport(st, *reportFlag, *fromFlag, *toFlag, *pdfFlag, *selectedFlag, excludeZero); err != nil {
			log.Fatal(err)
		}
		return
	}

	serve(st, cfg.WebPort, excludeZero)
}

func serve(st store.Store, port int, excludeZero bool) {
	machine := timer.New(st)

	// The server only surfaces the interrupted session; resolution is the
	// client's call via the recovery endpoint.
	if interrupted, err := machine.DetectInterrupted(context.Background()); err != nil {
		log.Printf("interrupted-session scan failed: %v", err)
	} else if interrupted != nil {
		log.Printf("found interrupted session %s (task %s); resolve via POST /api/timer/interrupted",
			interrupted.ID, interrupted.TaskID)
	}

	handler := web.NewServer(st, machine, web.WithExcludeZeroDays(excludeZero)).Handler()
	addr := fmt.Sprintf(":%d", port)
	log.Printf("API listening at http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}

func runReport(st store.Store, kind, fromValue, toValue, pdfPath, selectedValue string, excludeZero bool) error {
	from, to, err := reportRange(kind, fromValue, toValue, time.Now())
	if err != nil {
		return err
	}

	ctx := context.Background()
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return err
	}
	nodes, err := st.ListNodes(ctx)
	if err != nil {
		return err
	}

	days := stats.Aggregate(sessions, from, to, time.Now())
	if selectedValue != "" {
		var selected []string
		for _, part := range strings.Split(selectedValue, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				selected = append(selected, trimmed)
			}
		}
		display := stats.ResolveDisplayIDs(nodes, selected)
		days = stats.MergeByDisplay(days, display)
	}
	averages := stats.ComputeAverages(days, excludeZero)

	if pdfPath != "" {
		title := fmt.Sprintf("Time report (%s)", kind)
		return report.WritePDF(pdfPath, title, days, averages, nodes)
	}
	return report.WriteText(os.Stdout, days, averages, nodes)
}

func reportRange(kind, fromValue, toValue string, now time.Time) (time.Time, time.Time, error) {
	switch kind {
	case "today":
		return now, now, nil
	case "week":
		return weekRange(now)
	case "month":
		return monthRange(now)
	case "range":
		if fromValue == "" || toValue == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("-report range needs -from and -to")
		}
		from, err := time.ParseInLocation("2006-01-02", fromValue, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -from: %w", err)
		}
		to, err := time.ParseInLocation("2006-01-02", toValue, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -to: %w", err)
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, fmt.Errorf("-to precedes -from")
		}
		return from, to, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown report kind %q", kind)
	}
}

// weekRange covers the Monday-start week containing t.
func weekRange(t time.Time) (time.Time, time.Time, error) {
	offset := int(t.Weekday())
	if offset == 0 {
		offset = 7
	}
	start := t.AddDate(0, 0, -offset+1)
	return start, start.AddDate(0, 0, 6), nil
}

func monthRange(t time.Time) (time.Time, time.Time, error) {
	year, month, _ := t.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, -1), nil
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Storage != "memory" {
		if err := config.EnsureDir(cfg.DBPath); err != nil {
			return nil, err
		}
	}
	return store.Open(cfg.Storage, cfg.DBPath)
}
