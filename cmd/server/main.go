package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"emberhold.world/internal/persistence/indexdb"
	"emberhold.world/internal/sim/catalogs"
	"emberhold.world/internal/sim/session"
	"emberhold.world/internal/sim/settlement"
	"emberhold.world/internal/sim/tuning"
	"emberhold.world/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	eng, err := settlement.NewEngine(cats, &tune)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	// Read-model index; never on the simulation's critical path.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	mgr := session.NewManager(eng, *dataDir, idx, logger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		ids := mgr.IDs()
		fmt.Fprintf(rw, "# HELP emberhold_sessions Live settlement sessions.\n")
		fmt.Fprintf(rw, "# TYPE emberhold_sessions gauge\n")
		fmt.Fprintf(rw, "emberhold_sessions %d\n", len(ids))

		type row struct {
			id   string
			tick uint64
			pop  int
		}
		var rows []row
		for _, id := range ids {
			s, ok := mgr.Get(id)
			if !ok {
				continue
			}
			v, err := s.ViewState()
			if err != nil {
				continue
			}
			rows = append(rows, row{id: id, tick: v.State.Tick, pop: v.State.Population})
		}

		fmt.Fprintf(rw, "# HELP emberhold_settlement_tick Current tick per settlement.\n")
		fmt.Fprintf(rw, "# TYPE emberhold_settlement_tick gauge\n")
		for _, r := range rows {
			fmt.Fprintf(rw, "emberhold_settlement_tick{settlement=%q} %d\n", r.id, r.tick)
		}

		fmt.Fprintf(rw, "# HELP emberhold_settlement_population Current population per settlement.\n")
		fmt.Fprintf(rw, "# TYPE emberhold_settlement_population gauge\n")
		for _, r := range rows {
			fmt.Fprintf(rw, "emberhold_settlement_population{settlement=%q} %d\n", r.id, r.pop)
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP emberhold_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE emberhold_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "emberhold_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP emberhold_index_dropped_total Index rows dropped on backlog, by kind.\n")
			fmt.Fprintf(rw, "# TYPE emberhold_index_dropped_total counter\n")
			fmt.Fprintf(rw, "emberhold_index_dropped_total{kind=%q} %d\n", "event", st.DropEventTotal)
			fmt.Fprintf(rw, "emberhold_index_dropped_total{kind=%q} %d\n", "command", st.DropCommandTotal)
			fmt.Fprintf(rw, "emberhold_index_dropped_total{kind=%q} %d\n", "chronicle", st.DropChronicleTotal)
			fmt.Fprintf(rw, "emberhold_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
			fmt.Fprintf(rw, "emberhold_index_dropped_total{kind=%q} %d\n", "advance", st.DropAdvanceTotal)
		}
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, cats, &tune, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Snapshot every settlement before the process exits.
	mgr.CloseAll()
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
