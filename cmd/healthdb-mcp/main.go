// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command healthdb-mcp serves a local Apple Health SQLite database over MCP
// with a single execute_sql tool. Point healthdesk at it with
// mcp.transport=stdio and mcp.command=healthdb-mcp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jllopis/healthdesk/pkg/healthdb"
	"github.com/jllopis/healthdesk/pkg/prompts"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "healthdb-mcp:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("healthdb-mcp", flag.ContinueOnError)
	dbPath := fs.String("db", "health.db", "SQLite database file")
	initDB := fs.Bool("init", false, "create the database and apply the schema before serving")
	seedDays := fs.Int("seed-days", 0, "with -init, fill this many days of sample data")
	promptsDir := fs.String("prompts", "", "directory overriding the built-in schema.sql")
	transport := fs.String("transport", "stdio", "stdio or http")
	addr := fs.String("addr", ":8090", "listen address for -transport=http")
	maxRows := fs.Int("max-rows", healthdb.DefaultMaxRows, "maximum rows returned per query")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// stdout carries the protocol on stdio; logs go to stderr.
	log := telemetry.ConfigureSlog(os.Stderr, *logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *initDB {
		set, err := prompts.Load(*promptsDir)
		if err != nil {
			return err
		}
		if err := healthdb.Init(ctx, *dbPath, set.Schema()); err != nil {
			return err
		}
		if *seedDays > 0 {
			if err := healthdb.Seed(ctx, *dbPath, *seedDays, time.Now()); err != nil {
				return err
			}
		}
		log.Info("healthdb.init", slog.String("path", *dbPath), slog.Int("seed_days", *seedDays))
	}

	db, err := healthdb.Open(*dbPath, healthdb.WithMaxRows(*maxRows))
	if err != nil {
		return err
	}
	defer db.Close()
	srv := healthdb.NewServer(db, log)

	switch *transport {
	case "stdio":
		log.Info("healthdb.serve", slog.String("transport", "stdio"), slog.String("path", db.Path()))
		return srv.ServeStdio()
	case "http":
		httpServer := &http.Server{Addr: *addr, Handler: srv.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		log.Info("healthdb.serve", slog.String("transport", "http"), slog.String("addr", *addr), slog.String("path", db.Path()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown transport %q", *transport)
	}
}
