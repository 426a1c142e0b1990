package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/config"
	"github.com/cuemby/omg/pkg/daemon"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/status"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "omgd",
	Short: "omgd - package-manager daemon",
	Long: `omgd is a long-running daemon that fronts a host's native package
manager with a fast, cached, locally-reachable RPC surface over a Unix
domain socket: status, search, info, updates, install/remove/apply.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"omgd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("backend", "pacman", "Native package manager to shell out to (pacman, apt)")
	rootCmd.PersistentFlags().String("metrics-addr", "127.0.0.1:9091", "Address for the metrics/health HTTP endpoint")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doctorCmd)
}

func initLogging() {
	// Config isn't resolved yet at this point (it may still fail), so
	// logging starts at info level with console output;
	// cfg.LogLevel/LogJSON take over once Load succeeds inside each
	// subcommand.
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the omgd daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			os.Exit(3)
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})

		backendTag, _ := cmd.Flags().GetString("backend")
		be := backend.NewExecBackend(backendTag, commandSetFor(backendTag))

		srv := daemon.New(cfg, be)

		ctx := context.Background()
		if err := srv.Start(ctx); err != nil {
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(2)
			}
			if errors.Is(err, pkv.ErrStorageUnavailable) {
				fmt.Fprintf(os.Stderr, "Error: storage unavailable: %v\n", err)
				os.Exit(4)
			}
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Printf("✓ omgd started (socket: %s)\n", cfg.SocketPath)

		// Component health probes come from the components themselves:
		// the server reports storage once open, the status aggregator
		// reports backend and index on every refresh.
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		metrics.SetVersion(Version)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Run(ctx); err != nil {
				errCh <- err
			}
		}()

		fmt.Println("omgd is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\naccept loop error: %v\n", err)
		}

		srv.Shutdown()
		<-srv.Stopped()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Inspect on-disk daemon state without requiring a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			os.Exit(3)
		}

		fmt.Printf("socket path:   %s\n", cfg.SocketPath)
		fmt.Printf("data dir:      %s\n", cfg.DataDir)
		fmt.Printf("pidfile:       %s\n", cfg.PidfilePath)

		configFilePath := config.ConfigFilePath()
		if _, statErr := os.Stat(configFilePath); statErr == nil {
			fmt.Printf("config file:   %s (loaded)\n", configFilePath)
		} else {
			fmt.Printf("config file:   %s (not present, using env/defaults)\n", configFilePath)
		}

		if pid, err := daemon.ReadPidfile(cfg.PidfilePath); err != nil {
			fmt.Printf("pidfile:       not held (%v)\n", err)
		} else {
			fmt.Printf("pidfile:       held by pid %d\n", pid)
		}

		store, err := pkv.Open(cfg.DataDir)
		if err != nil {
			fmt.Printf("storage (%s): unreadable: %v\n", cfg.DBPath(), err)
		} else {
			fmt.Printf("storage (%s): ok\n", cfg.DBPath())
			store.Close()
		}

		fs, err := status.LoadPublished(cfg.StatusPath)
		if err != nil {
			fmt.Printf("status file (%s): unreadable: %v\n", cfg.StatusPath, err)
		} else {
			age := time.Since(time.Unix(0, int64(fs.GeneratedAtNanos)))
			fmt.Printf("status file (%s): schema v%d, %d packages, generated %s ago, stale=%v\n",
				cfg.StatusPath, fs.SchemaVersion, fs.TotalCount, age.Round(time.Second), fs.BackendStale)
		}

		dumpPath, _ := cmd.Flags().GetString("dump-config")
		if dumpPath != "" {
			data, err := cfg.DumpYAML()
			if err != nil {
				return fmt.Errorf("render config yaml: %w", err)
			}
			if err := os.WriteFile(dumpPath, data, 0600); err != nil {
				return fmt.Errorf("write %s: %w", dumpPath, err)
			}
			fmt.Printf("✓ wrote resolved config to %s\n", dumpPath)
		}

		return nil
	},
}

func init() {
	doctorCmd.Flags().String("dump-config", "", "write the resolved configuration as YAML to the given path (loadable back from omgd.yaml)")
}

// commandSetFor returns the CommandSet for a known backend tag. Real
// deployments would allow overriding each command individually; this
// ships command sets for pacman and apt, with pacman as the default.
func commandSetFor(tag string) backend.CommandSet {
	switch tag {
	case "apt":
		return backend.CommandSet{
			Snapshot:          []string{"/bin/sh", "-c", "dpkg-query -W -f='${Package}\\t${Version}\\t1\\n'"},
			Info:              []string{"dpkg-query", "-W", "-f=${Package}\t${Version}\t${binary:Summary}\n"},
			Updates:           []string{"/bin/sh", "-c", "apt list --upgradable 2>/dev/null | awk '/upgradable from/ {split($1,a,\"/\"); v=$6; sub(/\\]$/,\"\",v); print a[1]\"\\t\"v\"\\t\"$2}'"},
			ExplicitInstalled: []string{"/bin/sh", "-c", "apt-mark showmanual"},
			Orphans:           []string{"/bin/sh", "-c", "deborphan"},
			Install:           []string{"apt-get", "install", "-y"},
			Remove:            []string{"apt-get", "remove", "-y"},
			ApplyAllUpdates:   []string{"apt-get", "upgrade", "-y"},
		}
	default:
		return backend.CommandSet{
			Snapshot:          []string{"/bin/sh", "-c", "pacman -Q | awk '{print $1\"\\t\"$2\"\\t1\"}'"},
			Info:              []string{"pacman", "-Qi"},
			Updates:           []string{"/bin/sh", "-c", "pacman -Qu | awk '{print $1\"\\t\"$2\"\\t\"$4}'"},
			ExplicitInstalled: []string{"pacman", "-Qqe"},
			Orphans:           []string{"pacman", "-Qqdt"},
			Install:           []string{"pacman", "-S", "--noconfirm"},
			Remove:            []string{"pacman", "-R", "--noconfirm"},
			ApplyAllUpdates:   []string{"pacman", "-Syu", "--noconfirm"},
		}
	}
}
