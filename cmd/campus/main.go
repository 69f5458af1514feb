// Command campus is a CLI client for DanXi and Fudan campus services.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/campus-kit/internal/config"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `campus CLI
Usage:
  campus [-config file] [-v] [-refresh] <cmd> [args]

Commands:
  version
  login          -email <email> -password <password|->   (saves credential)
  logout                                                  (wipes credential and caches)
  status
  announcements  [-postgrad] [-more]
  bus            [-holiday]
  electricity
  wallet
  card
  canteen
  qrcode
  classrooms     -building <code>
  semesters
  courses        [-semester <id>]
  grad-courses   [-semester <year-term>]
  catalog
  profile
  divisions
  tags
  favorites
  prune          [-older <duration>]
`

var errUsage = errors.New("usage")

// ---- utils ----

func readAll(p string, stdin io.Reader) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// ---- main ----

type env struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	// open builds the session; replaced in tests.
	open func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*service.Session, error)
}

// run parses global flags, opens the session and dispatches one subcommand.
func run(ctx context.Context, args []string, e env) error {
	fs := flag.NewFlagSet("campus", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	cfgPath := fs.String("config", "", "config file (YAML)")
	verbose := fs.Bool("v", false, "verbose logging")
	refresh := fs.Bool("refresh", false, "bypass caches")
	fs.Usage = func() { fmt.Fprint(e.stderr, usageText) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(e.stdout, "campus %s (%s)\n", version, buildDate)
		return nil
	}
	h, ok := commands[cmd]
	if !ok {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	log, err := newLogger(*verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, err := e.open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	return h(ctx, &cmdEnv{env: e, s: s, refresh: *refresh}, rest)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err := run(ctx, os.Args[1:], env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, open: service.Open})
	if errors.Is(err, errUsage) {
		cancel()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

// ---- helpers ----

func describe(err error) string {
	switch {
	case errors.Is(err, errs.ErrSessionExpired):
		return "session expired, run: campus login"
	case errors.Is(err, errs.ErrAuthRequired):
		return "not logged in, run: campus login"
	case errors.Is(err, errs.ErrNotDiningTime):
		return "canteens report queues only during meal hours"
	case errors.Is(err, errs.ErrTermsNotAgreed):
		return "accept the e-card payment terms in the official app first"
	case errs.IsTimeout(err):
		return "request timed out: " + err.Error()
	}
	var se *errs.ServerError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return "server: " + se.Message
	}
	return err.Error()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}
