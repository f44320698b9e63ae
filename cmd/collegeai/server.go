package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/collegeai/internal/api"
	"github.com/kalambet/collegeai/internal/config"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/slots"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the turn API over HTTP, or the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		slog.SetDefault(a.logger)
		if mcpMode {
			return serveMCP(cmd.Context(), a)
		}
		return serveHTTP(cmd.Context(), a)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}
		return showStatus(cmd.Context(), cfg, clientFor(cfg))
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "serve MCP tools on stdin/stdout instead of HTTP")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "collegeai.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func serveMCP(ctx context.Context, a *app) error {
	mode, err := slots.ParseMode(a.cfg.Intake.CompletionMode)
	if err != nil {
		return err
	}
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    a.store,
		Profiles: a.profiles,
		Mode:     mode,
	})
	a.logger.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, a *app) error {
	fmt.Fprintf(stderr, "collegeai version %s\n", version)

	pidPath := pidFilePath(a.cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", a.cfg.Server.Port)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", a.cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	if a.cfg.Server.APIToken == "" {
		a.logger.Warn("no API token configured; the turn API is open to local callers")
	}

	handler := api.NewHandler(api.Deps{
		Store:    a.store,
		Profiles: a.profiles,
		Agents:   a.agents,
		Token:    a.cfg.Server.APIToken,
		Logger:   a.logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stderr, "collegeai listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context, cfg config.Config, c *apiClient) error {
	resp, err := c.get(ctx, "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Oracle.Provider)
	printStatus("Model", "%s", cfg.Oracle.Model)
	if cfg.HasOracle() {
		printStatus("Oracle", "configured")
	} else {
		printStatus("Oracle", "missing API key")
	}
	printStatus("Completion", "%s", cfg.Intake.CompletionMode)
	printStatus("Storage", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	if id := strings.TrimSpace(clientID); id != "" && running {
		resp, err := c.get(ctx, "/clients/"+id+"/profile")
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := decodeJSON(resp, &doc); err != nil {
			printStatus("Client", "%s: %v", id, err)
			return nil
		}
		filled := slots.Compute(doc, profile.PrioritySlots, nil, slots.ModeCore).Filled
		printStatus("Client", "%s (%d of %d priority fields filled)", id, len(filled), len(profile.PrioritySlots))
	}
	return nil
}
