// Command chronicle reads the sqlite index a running server maintains and
// prints settlement history: chronicle entries, events, commands, snapshots.
// It opens the database read-only and never touches simulation state.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "chronicle":
			chronicleCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "commands":
			commandsCmd(os.Args[2:])
			return
		case "snapshots":
			snapshotsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func openIndex(dataDir string) *sql.DB {
	path := filepath.Join(dataDir, "index.db")
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	return db
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("chronicle", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	db := openIndex(*dataDir)
	defer db.Close()

	rows, err := db.Query(`SELECT settlement, MAX(tick), MAX(year) FROM chronicle GROUP BY settlement ORDER BY settlement`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var tick uint64
		var year int
		if err := rows.Scan(&id, &tick, &year); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("%s\ttick=%d\tyear=%d\n", id, tick, year)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func chronicleCmd(args []string) {
	fs := flag.NewFlagSet("chronicle", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	settlement := fs.String("settlement", "", "settlement id")
	limit := fs.Int("limit", 50, "entries to print (newest first)")
	_ = fs.Parse(args)
	requireSettlement(*settlement)

	db := openIndex(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT tick, year, season, title, message FROM chronicle WHERE settlement=? ORDER BY tick DESC LIMIT ?`,
		*settlement, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var year int
		var season, title, message string
		if err := rows.Scan(&tick, &year, &season, &title, &message); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("[%d] year %d, %s\t%s: %s\n", tick, year, season, title, message)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	settlement := fs.String("settlement", "", "settlement id")
	since := fs.Uint64("since", 0, "start cursor (exclusive)")
	limit := fs.Int("limit", 100, "events to print")
	_ = fs.Parse(args)
	requireSettlement(*settlement)

	db := openIndex(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT cursor, tick, type, title FROM events WHERE settlement=? AND cursor>? ORDER BY cursor LIMIT ?`,
		*settlement, *since, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var cursor, tick uint64
		var typ, title string
		if err := rows.Scan(&cursor, &tick, &typ, &title); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("%d\t[%d]\t%-12s\t%s\n", cursor, tick, typ, title)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func commandsCmd(args []string) {
	fs := flag.NewFlagSet("commands", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	settlement := fs.String("settlement", "", "settlement id")
	limit := fs.Int("limit", 100, "commands to print (newest first)")
	_ = fs.Parse(args)
	requireSettlement(*settlement)

	db := openIndex(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT tick, req_id, op, accepted, code FROM commands WHERE settlement=? ORDER BY tick DESC, seq DESC LIMIT ?`,
		*settlement, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var reqID, op, code string
		var accepted bool
		if err := rows.Scan(&tick, &reqID, &op, &accepted, &code); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		verdict := "ok"
		if !accepted {
			verdict = code
		}
		fmt.Printf("[%d]\t%-14s\t%-16s\t%s\n", tick, op, reqID, verdict)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	settlement := fs.String("settlement", "", "settlement id")
	_ = fs.Parse(args)
	requireSettlement(*settlement)

	db := openIndex(*dataDir)
	defer db.Close()

	rows, err := db.Query(
		`SELECT tick, year, season, population, path, digest FROM snapshots WHERE settlement=? ORDER BY tick`,
		*settlement)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var year, population int
		var season, path, digest string
		if err := rows.Scan(&tick, &year, &season, &population, &path, &digest); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("[%d]\tyear %d %s\tpop=%d\t%s\t%s\n", tick, year, season, population, path, digest[:12])
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func requireSettlement(id string) {
	if id == "" {
		fmt.Fprintln(os.Stderr, "missing -settlement")
		os.Exit(2)
	}
}
