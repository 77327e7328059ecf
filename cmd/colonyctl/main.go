// Command colonyctl reads and edits colony parameters in the SQLite store,
// the same blobs a running simulation picks up on its next tick.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/persistence"
)

const usage = `usage: colonyctl <command> [flags] [args]

commands:
  list                       colonies with stored parameters
  get   -colony NAME [KEY]   effective parameters (or one value)
  set   -colony NAME K=V...  set numeric parameters (snapped to their range)
  color -colony NAME K HEX   set robotColor or resourceColor
  reset -colony NAME         drop stored parameters (defaults apply)
  runs  [-colony NAME]       recorded runs
  schema                     JSON schema of a parameter blob`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "colonyctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	if cmd == "schema" {
		b, err := config.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dbPath := fs.String("db", "forage.db", "sqlite store path")
	colony := fs.String("colony", "", "colony name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := persistence.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	handle := func() (*config.Colony, error) {
		if *colony == "" {
			return nil, errors.New("missing -colony")
		}
		return config.NewColony(*colony, db, logger), nil
	}

	switch cmd {
	case "list":
		names, err := db.Names(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil

	case "get":
		c, err := handle()
		if err != nil {
			return err
		}
		if fs.NArg() > 0 {
			key := fs.Arg(0)
			switch key {
			case config.KeyRobotColor:
				fmt.Fprintln(out, c.Snapshot().RobotColor)
				return nil
			case config.KeyResourceColor:
				fmt.Fprintln(out, c.Snapshot().ResourceColor)
				return nil
			}
			v, err := c.Value(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, strconv.FormatFloat(v, 'f', -1, 64))
			return nil
		}
		b, err := json.MarshalIndent(c.Snapshot().Map(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil

	case "set":
		c, err := handle()
		if err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return errors.New("set needs KEY=VALUE arguments")
		}
		for _, arg := range fs.Args() {
			key, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("bad assignment %q", arg)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			got, err := c.SetValue(ctx, key, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s=%s\n", key, strconv.FormatFloat(got, 'f', -1, 64))
		}
		return nil

	case "color":
		c, err := handle()
		if err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errors.New("color needs KEY and HEX")
		}
		return c.SetColor(ctx, fs.Arg(0), fs.Arg(1))

	case "reset":
		c, err := handle()
		if err != nil {
			return err
		}
		return c.Reset(ctx)

	case "runs":
		runs, err := db.Runs(ctx, *colony)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %-12s seed=%d ticks=%s emptied=%s filled=%s finished %s\n",
				r.ID, r.Colony, r.Seed,
				humanize.Comma(r.Ticks),
				humanize.Comma(int64(r.Emptied)),
				humanize.Comma(int64(r.Filled)),
				humanize.Time(r.FinishedAt),
			)
		}
		return nil
	}

	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}
