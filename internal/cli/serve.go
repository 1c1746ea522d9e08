package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nvlviz/pkg/pipeline"
	"github.com/matzehuels/nvlviz/pkg/server"
)

type serveOpts struct {
	addr           string
	bundle         string
	bundleURL      string
	noTooltip      bool
	maxNodes       int
	sessionTimeout time.Duration
	noCache        bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored graphs as live widget pages",
		Long: `Serve every stored graph as an interactive widget page.

Live pages at /graphs/<name> are driven from the server over a websocket;
/graphs/<name>/static is a self-contained page and /api/graphs manages the
store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "listen address (default :8080)")
	f.StringVar(&opts.bundle, "bundle", "", "engine bundle file served at "+server.BundlePath)
	f.StringVar(&opts.bundleURL, "bundle-url", "", "engine bundle URL referenced by pages")
	f.BoolVar(&opts.noTooltip, "no-tooltip", false, "disable the hover tooltip")
	f.IntVar(&opts.maxNodes, "max-nodes", 0, "refuse graphs with more nodes")
	f.DurationVar(&opts.sessionTimeout, "session-timeout", 0, "how long to wait for a page to acknowledge a command")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the export cache")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts *serveOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := c.config()
	if err != nil {
		return err
	}
	bundleURL := opts.bundleURL
	if opts.bundle == "" && bundleURL == "" {
		bundleURL = cfg.BundleURL
	}
	var bundle []byte
	if bundleURL == "" {
		if bundle, err = cfg.readBundle(opts.bundle); err != nil {
			return err
		}
		if len(bundle) == 0 {
			printWarning("no engine bundle configured; pages will not load until --bundle or --bundle-url is set")
		}
	}

	st, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	cc, keyer, err := cfg.openCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cc, keyer, logger)
	defer runner.Close()

	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	maxNodes := opts.maxNodes
	if maxNodes == 0 {
		maxNodes = cfg.Server.MaxAllowedNodes
	}
	timeout := opts.sessionTimeout
	if timeout == 0 {
		timeout = cfg.Server.SessionTimeout.Duration
	}

	srv := server.New(st, server.Options{
		Bundle:          bundle,
		BundleURL:       bundleURL,
		Config:          cfg.Engine,
		DisableTooltip:  opts.noTooltip,
		MaxAllowedNodes: maxNodes,
		SessionTimeout:  timeout,
		Runner:          runner,
		Logger:          logger,
	})

	printInfo("Serving on %s", StyleLink.Render("http://"+displayAddr(addr)))
	printNextStep("Store a graph", "nvlviz import csv --nodes nodes.csv --save demo")
	return srv.ListenAndServe(ctx, addr)
}

// displayAddr turns ":8080" into "localhost:8080".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
