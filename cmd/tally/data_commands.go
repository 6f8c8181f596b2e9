package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	serveradapter "github.com/evanschultz/tally/internal/adapters/server"
	servercommon "github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/report"
	"github.com/spf13/cobra"
)

func newServeCommand(withEnv envRunner) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoints",
		Args:  cobra.NoArgs,
		RunE: withEnv("serve", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			cfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
				ServerName:    env.opts.appName,
				ServerVersion: version,
			}
			env.logger.Info("serve listening", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
			return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
				Service: servercommon.NewAppServiceAdapter(env.svc),
				Ready:   env.repo,
			})
		}),
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP path")
	return cmd
}

func newExportCommand(withEnv envRunner) *cobra.Command {
	var format, sessionID, outPath string
	var includeInactive bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a JSON snapshot or a session report",
		Args:  cobra.NoArgs,
		RunE: withEnv("export", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			var buf bytes.Buffer
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case "json":
				snap, err := env.svc.ExportSnapshot(ctx, includeInactive)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot json: %w", err)
				}
				buf.Write(encoded)
				buf.WriteByte('\n')
			case "md", "xlsx":
				if strings.TrimSpace(sessionID) == "" {
					return fmt.Errorf("--session is required for %s export", format)
				}
				r, err := report.Load(ctx, env.svc, sessionID, time.Now())
				if err != nil {
					return err
				}
				if format == "md" {
					buf.WriteString(report.Markdown(r))
				} else if err := report.WriteXLSX(&buf, r); err != nil {
					return err
				}
				if outPath == "" {
					outPath = filepath.Join(env.paths.ReportsDir, reportFileName(r, format))
				}
			default:
				return fmt.Errorf("unsupported export format %q (json, md, xlsx)", format)
			}
			if outPath == "" {
				outPath = "-"
			}
			if err := writeOutput(cmd.OutOrStdout(), outPath, buf.Bytes()); err != nil {
				return err
			}
			if outPath != "-" {
				newOutputStyles(cmd.ErrOrStderr()).done(cmd.ErrOrStderr(), "wrote "+format+" export", outPath)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "json", "json | md | xlsx")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id for md/xlsx reports")
	cmd.Flags().StringVar(&outPath, "out", "", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", true, "include deactivated products in json snapshots")
	return cmd
}

func reportFileName(r report.VarianceReport, format string) string {
	name := report.FileName(r)
	if format == "md" {
		return strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
	}
	return name
}

// writeOutput writes content to stdout when path is "-", otherwise to a file.
func writeOutput(stdout io.Writer, path string, content []byte) error {
	if path == "-" {
		if _, err := stdout.Write(content); err != nil {
			return fmt.Errorf("write export to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func newImportCommand(withEnv envRunner) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: withEnv("import", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}
			if err := env.svc.ImportSnapshot(ctx, snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			newOutputStyles(cmd.OutOrStdout()).done(
				cmd.OutOrStdout(),
				fmt.Sprintf("imported %d product(s) and %d session(s)", len(snap.Products), len(snap.Sessions)),
				inPath,
			)
			return nil
		}),
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
