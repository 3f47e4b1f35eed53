package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/cacheclient"
	"github.com/unkn0wn-root/cacheclient/factory"
	zaplog "github.com/unkn0wn-root/cacheclient/log/zap"
)

// errFailed is returned after a failed response has been printed.
var errFailed = errors.New("cache operation failed")

type app struct {
	out    io.Writer
	logger *zap.Logger // nil => built from --verbose

	configPath   string
	provider     string
	codec        string
	prefix       string
	separator    string
	redisAddrs   []string
	redisPass    string
	redisDB      int
	memcached    []string
	namespace    string
	namespaceTTL time.Duration
	verbose      bool
}

// output is the JSON form of a Response.
type output struct {
	Result             any    `json:"result"`
	InstructionSuccess bool   `json:"instructionSuccess"`
	ConnectionSuccess  bool   `json:"connectionSuccess"`
	Error              string `json:"error,omitempty"`
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Run cache operations against memory, memcached, redis or ristretto",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML provider config; overrides connection flags")
	pf.StringVarP(&a.provider, "provider", "p", "memory", "Provider (memory, memcached, redis, ristretto)")
	pf.StringVar(&a.codec, "codec", "", "Value codec for network providers (json, msgpack, cbor, text)")
	pf.StringVar(&a.prefix, "prefix", "", "Key prefix")
	pf.StringVar(&a.separator, "separator", "", "Separator between prefix, namespace, generation and key")
	pf.StringSliceVar(&a.redisAddrs, "redis", []string{"localhost:6379"}, "Redis addresses")
	pf.StringVar(&a.redisPass, "redis-pass", "", "Redis password")
	pf.IntVar(&a.redisDB, "redis-db", 0, "Redis database")
	pf.StringSliceVar(&a.memcached, "memcached", []string{"localhost:11211"}, "Memcached servers")
	pf.StringVarP(&a.namespace, "namespace", "n", "", "Namespace")
	pf.DurationVar(&a.namespaceTTL, "namespace-ttl", 0, "TTL of a namespace generation created by this call")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging on stderr")

	root.AddCommand(
		getCmd(a),
		setCmd(a),
		incrCmd(a),
		lockCmd(a),
		lockExistsCmd(a),
		delCmd(a),
		flushCmd(a),
	)
	return root
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Get(ctx, args[0], a.callOptions()...)
			})
		},
	}
}

func setCmd(a *app) *cobra.Command {
	var (
		ttl    time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("value is not JSON: %w", err)
				}
			}
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Set(ctx, args[0], value, ttl, a.callOptions()...)
			})
		},
	}
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 0, "Expiration (0 = never)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse the value as JSON")
	return cmd
}

func incrCmd(a *app) *cobra.Command {
	var (
		step, initial int64
		ttl           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "incr <key>",
		Short: "Increment a counter, creating it when absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Increment(ctx, args[0], step, initial, ttl, a.callOptions()...)
			})
		},
	}
	cmd.Flags().Int64Var(&step, "step", 1, "Amount to add")
	cmd.Flags().Int64Var(&initial, "initial", 0, "Starting value when the counter is created")
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 0, "Expiration applied on creation (0 = never)")
	return cmd
}

func lockCmd(a *app) *cobra.Command {
	var (
		owner string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lock <key>",
		Short: "Acquire a lock; the result is false when it is already held",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Lock(ctx, args[0], owner, ttl, a.callOptions()...)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Value stored in the lock")
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 0, "Lock expiration (0 = never)")
	return cmd
}

func lockExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lock-exists <key>",
		Short: "Report whether a lock is held",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.LockExists(ctx, args[0], a.callOptions()...)
			})
		},
	}
}

func delCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "del <key>",
		Short:   "Delete a key",
		Aliases: []string{"delete", "rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Delete(ctx, args[0], a.callOptions()...)
			})
		},
	}
}

func flushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush <namespace>",
		Short: "Invalidate every key of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, p cacheclient.Provider) cacheclient.Response {
				return p.Flush(ctx, args[0])
			})
		},
	}
}

func (a *app) callOptions() []cacheclient.Option {
	var opts []cacheclient.Option
	if a.namespace != "" {
		opts = append(opts, cacheclient.WithNamespace(a.namespace))
	}
	if a.namespaceTTL > 0 {
		opts = append(opts, cacheclient.WithNamespaceExpiration(a.namespaceTTL))
	}
	return opts
}

// run opens the provider, runs op, prints the response and closes the provider.
func (a *app) run(cmd *cobra.Command, op func(context.Context, cacheclient.Provider) cacheclient.Response) error {
	logger, err := a.zapLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := a.config()
	if err != nil {
		return err
	}
	p, err := factory.FromConfig(cfg, factory.WithLogger(zaplog.New(logger)))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp := op(ctx, p)
	if err := p.Close(ctx); err != nil {
		logger.Warn("close provider", zap.String("provider", p.Name()), zap.Error(err))
	}

	if err := a.print(resp); err != nil {
		return err
	}
	if resp.IsFailure() {
		return errFailed
	}
	return nil
}

func (a *app) print(r cacheclient.Response) error {
	o := output{
		Result:             r.Result(),
		InstructionSuccess: r.InstructionSuccess(),
		ConnectionSuccess:  r.ConnectionSuccess(),
	}
	if r.IsFailure() {
		o.Error = r.ErrorMessage()
	}
	enc := json.NewEncoder(a.out)
	return enc.Encode(o)
}

// config loads --config when given, otherwise assembles one from flags.
func (a *app) config() (factory.Config, error) {
	if a.configPath != "" {
		return factory.LoadConfig(a.configPath)
	}
	opts := map[string]any{}
	if a.prefix != "" {
		opts["prefix"] = a.prefix
	}
	if a.separator != "" {
		opts["separator"] = a.separator
	}
	return factory.Config{
		Provider: strings.TrimSpace(a.provider),
		Codec:    a.codec,
		Options:  opts,
		Redis: factory.RedisConfig{
			Addrs:    a.redisAddrs,
			Password: a.redisPass,
			DB:       a.redisDB,
		},
		Memcached: factory.MemcachedConfig{Servers: a.memcached},
	}, nil
}

func (a *app) zapLogger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
