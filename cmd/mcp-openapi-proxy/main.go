// Command mcp-openapi-proxy serves the tools of MCP servers as plain HTTP
// endpoints with generated OpenAPI documentation.
//
//	mcp-openapi-proxy --port 8000 --api-key secret -- uvx mcp-server-time
//	mcp-openapi-proxy --config servers.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/vikashloomba/mcp-openapi-proxy/pkg/config"
	mcpgateway "github.com/vikashloomba/mcp-openapi-proxy/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
)

// cliOptions is the parsed command line. set records which flags were given
// explicitly so they win over values from the config file.
type cliOptions struct {
	host             string
	port             int
	configPath       string
	apiKey           string
	strictAuth       bool
	corsAllowOrigins string
	name             string
	description      string
	version          string
	sslCertfile      string
	sslKeyfile       string
	pathPrefix       string
	logJSONRPC       bool
	envFile          string

	command []string
	set     map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cli, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelInfo
	if cli.logJSONRPC {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadEnvFiles(cli.envFile); err != nil {
		logger.Error("loading environment file", "error", err)
		return 1
	}

	servers, opts, err := resolve(cli, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	opts.Connector = mcpmgr.NewDialer(&mcpmgr.DialerOptions{
		ClientName: "mcp-openapi-proxy",
		LogJSONRPC: cli.logJSONRPC,
		Logger:     logger,
	})

	gw, err := mcpgateway.Compose(servers, opts)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if err := gw.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gateway stopped", "error", err)
		return 1
	}
	logger.Info("gateway shut down")
	return 0
}

func parseArgs(args []string, output io.Writer) (*cliOptions, error) {
	cli := &cliOptions{set: make(map[string]bool)}
	fs := flag.NewFlagSet("mcp-openapi-proxy", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "usage: mcp-openapi-proxy [flags] [--config FILE | -- COMMAND [ARGS...]]")
		fs.PrintDefaults()
	}
	fs.StringVar(&cli.host, "host", "0.0.0.0", "host to listen on")
	fs.IntVar(&cli.port, "port", 8000, "port to listen on")
	fs.StringVar(&cli.configPath, "config", "", "config file with an mcpServers map")
	fs.StringVar(&cli.apiKey, "api-key", "", "shared secret required as a bearer token (env MCPO_API_KEY)")
	fs.BoolVar(&cli.strictAuth, "strict-auth", false, "require the api key on every endpoint, including docs")
	fs.StringVar(&cli.corsAllowOrigins, "cors-allow-origins", "*", "comma separated list of allowed origins")
	fs.StringVar(&cli.name, "name", "", "API title")
	fs.StringVar(&cli.description, "description", "", "API description")
	fs.StringVar(&cli.version, "version", "", "API version")
	fs.StringVar(&cli.sslCertfile, "ssl-certfile", "", "TLS certificate file")
	fs.StringVar(&cli.sslKeyfile, "ssl-keyfile", "", "TLS key file")
	fs.StringVar(&cli.pathPrefix, "path-prefix", "/", "prefix for mounted server paths")
	fs.BoolVar(&cli.logJSONRPC, "log-json-rpc", false, "log JSON-RPC traffic at debug level")
	fs.StringVar(&cli.envFile, "env-file", ".env", "environment file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { cli.set[f.Name] = true })
	cli.command = fs.Args()
	return cli, nil
}

// resolve merges flags, the optional config file and the environment into
// the gateway's inputs. Flags win over the file, the file wins over the
// environment.
func resolve(cli *cliOptions, logger *slog.Logger) (mcpgateway.ServerSet, *mcpgateway.Options, error) {
	opts := &mcpgateway.Options{
		Addr:       net.JoinHostPort(cli.host, strconv.Itoa(cli.port)),
		PathPrefix: cli.pathPrefix,
		StrictAuth: cli.strictAuth,
		Metadata: mcpgateway.Metadata{
			Title:       cli.name,
			Description: cli.description,
			Version:     cli.version,
		},
		CORSAllowOrigins: splitList(cli.corsAllowOrigins),
		TLSCertFile:      cli.sslCertfile,
		TLSKeyFile:       cli.sslKeyfile,
		APIKey:           cli.apiKey,
		Logger:           logger,
	}

	var servers mcpgateway.ServerSet
	switch {
	case cli.configPath != "" && len(cli.command) > 0:
		return servers, nil, fmt.Errorf("%w: use either --config or a server command, not both", mcpgateway.ErrConfiguration)
	case cli.configPath != "":
		file, err := config.Load(cli.configPath)
		if err != nil {
			return servers, nil, err
		}
		if servers, err = file.ServerSet(); err != nil {
			return servers, nil, err
		}
		applyFile(cli, opts, file)
		logger.Info("loaded config", "path", cli.configPath, "servers", len(servers.Servers))
	case len(cli.command) > 0:
		servers.Single = &mcpmgr.StdioServerConfig{
			Command: cli.command[0],
			Args:    cli.command[1:],
		}
	default:
		return servers, nil, fmt.Errorf("%w: give a server command after -- or a --config file", mcpgateway.ErrNoServers)
	}

	if opts.APIKey == "" {
		opts.APIKey = firstEnv("MCPO_API_KEY", "MCP_API_KEY")
	}
	// A name given on the command line pins the single server's metadata.
	opts.MetadataOverride = cli.set["name"] || cli.set["description"] || cli.set["version"]
	return servers, opts, nil
}

func applyFile(cli *cliOptions, opts *mcpgateway.Options, file *config.File) {
	if !cli.set["name"] && file.Name != "" {
		opts.Metadata.Title = file.Name
	}
	if !cli.set["description"] && file.Description != "" {
		opts.Metadata.Description = file.Description
	}
	if !cli.set["version"] && file.Version != "" {
		opts.Metadata.Version = file.Version
	}
	if !cli.set["api-key"] && file.APIKey != "" {
		opts.APIKey = file.APIKey
	}
	if !cli.set["strict-auth"] && file.StrictAuth {
		opts.StrictAuth = true
	}
	if !cli.set["path-prefix"] && file.PathPrefix != "" {
		opts.PathPrefix = file.PathPrefix
	}
	if !cli.set["cors-allow-origins"] && len(file.CORSAllowOrigins) > 0 {
		opts.CORSAllowOrigins = file.CORSAllowOrigins
	}
	if !cli.set["ssl-certfile"] && file.SSLCertfile != "" {
		opts.TLSCertFile = file.SSLCertfile
	}
	if !cli.set["ssl-keyfile"] && file.SSLKeyfile != "" {
		opts.TLSKeyFile = file.SSLKeyfile
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
