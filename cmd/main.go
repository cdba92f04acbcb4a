// Package main is the entry point for the Nova Gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/config"
	"github.com/remodlai/nova-gateway/internal/gateway"
	"github.com/remodlai/nova-gateway/internal/monitoring"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// ANSI color codes
const (
	novaBlue = "\033[38;2;64;120;192m"
	bold     = "\033[1m"
	reset    = "\033[0m"
)

// ASCII banner for startup
const banner = `
 ███╗   ██╗ ██████╗ ██╗   ██╗ █████╗      ██████╗  █████╗ ████████╗███████╗██╗    ██╗ █████╗ ██╗   ██╗
 ████╗  ██║██╔═══██╗██║   ██║██╔══██╗    ██╔════╝ ██╔══██╗╚══██╔══╝██╔════╝██║    ██║██╔══██╗╚██╗ ██╔╝
 ██╔██╗ ██║██║   ██║██║   ██║███████║    ██║  ███╗███████║   ██║   █████╗  ██║ █╗ ██║███████║ ╚████╔╝
 ██║╚██╗██║██║   ██║╚██╗ ██╔╝██╔══██║    ██║   ██║██╔══██║   ██║   ██╔══╝  ██║███╗██║██╔══██║  ╚██╔╝
 ██║ ╚████║╚██████╔╝ ╚████╔╝ ██║  ██║    ╚██████╔╝██║  ██║   ██║   ███████╗╚███╔███╔╝██║  ██║   ██║
 ╚═╝  ╚═══╝ ╚═════╝   ╚═══╝  ╚═╝  ╚═╝     ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝ ╚══╝╚══╝ ╚═╝  ╚═╝   ╚═╝
`

func printBanner() {
	fmt.Print(novaBlue + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/nova-gateway/.env first
	configEnv := filepath.Join(homeDir, ".config", "nova-gateway", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "validate":
			runValidate(os.Args[2:])
			return
		case "version", "-v", "--version":
			fmt.Printf("nova-gateway %s\n", Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	// Default: serve
	runServe(os.Args[1:])
}

// resolveConfig resolves raw config bytes: user flag, filesystem locations,
// then the embedded default. Returns bytes and a source description.
func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	homeDir, _ := os.UserHomeDir()

	searchPaths := []string{}
	if homeDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(homeDir, ".config", "nova-gateway", "config.yaml"),
		)
	}
	searchPaths = append(searchPaths,
		"configs/config.yaml",
		"config.yaml",
	)

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	if data, err := getEmbeddedConfig("default"); err == nil {
		return data, "(embedded) default.yaml", nil
	}

	return nil, "", fmt.Errorf("no config file found. Specify --config path")
}

// serveFlags holds the serve command's flag overrides.
type serveFlags struct {
	configPath string
	host       string
	port       int
	logLevel   string
	noBanner   bool
}

func parseServeFlags(name string, args []string) *serveFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &serveFlags{}
	fs.StringVar(&f.configPath, "config", "", "path to config file")
	fs.StringVar(&f.host, "host", "", "override server.host")
	fs.IntVar(&f.port, "port", 0, "override server.port")
	fs.StringVar(&f.logLevel, "log-level", "", "override monitoring.log_level")
	fs.BoolVar(&f.noBanner, "no-banner", false, "suppress startup banner")
	_ = fs.Parse(args) // ExitOnError handles errors
	return f
}

// loadConfig resolves, parses and applies flag overrides.
func (f *serveFlags) loadConfig() (*config.Config, string, error) {
	data, source, err := resolveConfig(f.configPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromBytes(data)
	if err != nil {
		return nil, source, err
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.logLevel != "" {
		cfg.Monitoring.LogLevel = f.logLevel
	}
	return cfg, source, nil
}

// runServe starts the gateway server.
func runServe(args []string) {
	loadEnvFiles()
	f := parseServeFlags("serve", args)

	if !f.noBanner {
		printBanner()
	}

	cfg, source, err := f.loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	monitoring.Global(monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	log.Info().
		Str("version", Version).
		Str("config", source).
		Msg("nova_gateway_starting")

	gateway.Version = Version
	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build gateway")
	}

	// SIGHUP reloads the deployment pool from the same config source;
	// SIGINT/SIGTERM shut down gracefully.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				reloadDeployments(gw, f)
				continue
			}

			log.Info().Str("signal", sig.String()).Msg("shutdown_signal_received")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := gw.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("gateway shutdown error")
			}
			return
		}
	}()

	if err := gw.Start(); err != nil {
		if err.Error() != "http: Server closed" {
			log.Fatal().Err(err).Msg("gateway error")
		}
	}

	log.Info().Msg("nova_gateway_stopped")
}

// reloadDeployments re-reads the config and swaps the deployment pool.
func reloadDeployments(gw *gateway.Gateway, f *serveFlags) {
	cfg, source, err := f.loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("reload_failed")
		return
	}
	if err := gw.Reload(cfg); err != nil {
		log.Error().Err(err).Str("config", source).Msg("reload_failed")
		return
	}
	log.Info().Str("config", source).Msg("deployments_reloaded_from_config")
}

// runValidate checks a config file and exits non-zero on problems.
func runValidate(args []string) {
	loadEnvFiles()
	f := parseServeFlags("validate", args)

	cfg, source, err := f.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ok: %s (%d deployments, %d hooks)\n", source, len(cfg.Models), len(cfg.Hooks))
}

// printHelp prints usage information
func printHelp() {
	printBanner()
	fmt.Println("Nova Gateway - LLM request hook pipeline and deployment router")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  nova-gateway [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the gateway server (default)")
	fmt.Println("  validate     Check a configuration file and exit")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config FILE      Gateway config (embedded default if omitted)")
	fmt.Println("  --host HOST        Override server.host")
	fmt.Println("  --port PORT        Override server.port")
	fmt.Println("  --log-level LEVEL  Override log level (debug, info, warn, error)")
	fmt.Println("  --no-banner        Suppress startup banner")
	fmt.Println()
	fmt.Println("Signals:")
	fmt.Println("  SIGHUP       Reload the deployment pool from the config file")
	fmt.Println("  SIGINT/TERM  Graceful shutdown")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  nova-gateway serve --config configs/gateway.yaml")
	fmt.Println("  nova-gateway validate --config configs/gateway.yaml")

	if names, err := listEmbeddedConfigs(); err == nil && len(names) > 0 {
		fmt.Println()
		fmt.Printf("Embedded configs: %v\n", names)
	}
}
