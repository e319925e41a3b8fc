// Command nscache inspects and edits a cache from the command line.
//
//	nscache -config cache.yaml -ns users set alice '{"id":1}'
//	nscache -ns users set bob '{"id":2}' -ttl 10m
//	nscache -ns users get alice
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/config"
	nszap "github.com/unkn0wn-root/nscache/log/zap"
)

var version = "dev"

const usage = `usage: nscache [flags] <command> [args]

commands:
  get KEY          print the value stored for KEY
  set KEY VALUE    store VALUE for KEY; -ttl may also follow the arguments
  rm KEY           remove KEY
  clear            remove every entry of the namespace
  gc               remove expired entries of the namespace
  validate         check the configuration and exit

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nscache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file (default: built-in filesystem config)")
	adapter := fs.String("adapter", "", "Adapter name (default: the configured default)")
	ns := fs.String("ns", nscache.DefaultNamespace, "Namespace")
	ttl := fs.Duration("ttl", 0, "TTL for set (0 = adapter default)")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "nscache %s\n", version)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	cfg := nscache.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
			return 1
		}
		cfg = *loaded
	}

	factory := nscache.NewFactory[string](nscache.FactoryOptions[string]{
		Logger: nszap.New(logger),
		Codec:  codec.String{},
	})
	ctx := context.Background()
	defer func() { _ = factory.Close(ctx) }()

	if err := factory.SetConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "validate" {
		fmt.Fprintln(stdout, "Configuration is valid")
		return 0
	}

	cache, err := factory.Make(*ns, *adapter)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create cache: %v\n", err)
		return 1
	}
	if err := cache.SetEnabled(true); err != nil {
		fmt.Fprintf(stderr, "Failed to enable cache: %v\n", err)
		return 1
	}
	defer func() {
		if err := cache.Release(ctx); err != nil {
			logger.Warn("gc sweep incomplete", zap.Error(err))
		}
	}()

	return execute(ctx, cache, cmd, rest, *ttl, stdout, stderr)
}

func execute(ctx context.Context, cache nscache.Cache[string], cmd string, args []string, ttl time.Duration, stdout, stderr io.Writer) int {
	want := map[string]int{"get": 1, "set": 2, "rm": 1, "clear": 0, "gc": 0}
	n, ok := want[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
	if cmd == "set" {
		sf := flag.NewFlagSet("set", flag.ContinueOnError)
		sf.SetOutput(stderr)
		setTTL := sf.Duration("ttl", ttl, "TTL for this entry")
		var err error
		if args, err = parseInterleaved(sf, args); err != nil {
			return 2
		}
		ttl = *setTTL
	}
	if len(args) != n {
		fmt.Fprintf(stderr, "%s: want %d argument(s), got %d\n", cmd, n, len(args))
		return 2
	}

	var st nscache.Status
	switch cmd {
	case "get":
		var v string
		v, st = cache.Get(ctx, args[0])
		if st == nscache.OK {
			fmt.Fprintln(stdout, v)
			return 0
		}
	case "set":
		st = cache.Set(ctx, args[0], args[1], ttl)
	case "rm":
		st = cache.Remove(ctx, args[0])
	case "clear":
		st = cache.ClearNamespace(ctx)
	case "gc":
		st = cache.ClearExpired(ctx)
	}
	if st != nscache.OK {
		fmt.Fprintf(stderr, "%s: %s\n", cmd, st)
		return 1
	}
	return 0
}

// parseInterleaved parses fs flags that appear anywhere in args and returns
// the positional arguments in order. Everything after "--" is positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		if len(args)-len(rest) > 0 && args[len(args)-len(rest)-1] == "--" {
			return append(pos, rest...), nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
