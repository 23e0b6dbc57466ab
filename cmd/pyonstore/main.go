// Command pyonstore starts a single datastore process: it connects to
// PostgreSQL (creating the database and running db_init.sql on first run),
// ensures the configured datastore's tables exist, and then blocks, serving
// nothing over the network itself — the object façade is consumed as a Go
// package by whatever transport a deployment wires in front of it.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docxology/pyonstore/internal/codec"
	"github.com/docxology/pyonstore/internal/datastore"
	"github.com/docxology/pyonstore/internal/facade"
	"github.com/docxology/pyonstore/internal/localdb"
	"github.com/docxology/pyonstore/internal/pool"
	"github.com/docxology/pyonstore/internal/registry"
	"github.com/docxology/pyonstore/internal/tracer"
	"github.com/docxology/pyonstore/pkg/config"
)

func main() {
	log.SetFlags(0)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	tableName := os.Getenv("PYONSTORE_DATASTORE")
	if tableName == "" {
		tableName = "resource"
	}
	table, err := cfg.DatastoreName(tableName)
	if err != nil {
		log.Fatalf("datastore name: %v", err)
	}

	ddl := datastore.NewDDLSet(cfg.DDLDir)

	poolCfg := pool.Config{
		Host:        cfg.Host,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Database:    cfg.Database,
		Capacity:    cfg.ConnectionPoolMax,
		DialTimeout: cfg.DialTimeout(),
	}
	p, err := datastore.EnsureDatabase(ctx, poolCfg, cfg.DefaultDatabase, ddl)
	if err != nil {
		log.Fatalf("ensure database: %v", err)
	}
	defer p.Close()

	tr := tracer.New(cfg.TracerEnabled, cfg.TracerCapacity)

	ddlCache, err := localdb.OpenManager(ctx, config.StateDir())
	if err != nil {
		log.Fatalf("open local bookkeeping db: %v", err)
	}
	defer ddlCache.Close()

	store, err := datastore.NewStore(p, table, datastore.Profile(cfg.Profile), ddl, tr)
	if err != nil {
		log.Fatalf("new store: %v", err)
	}
	store.SetDDLCache(ddlCache)
	if err := store.EnsureTables(ctx); err != nil {
		log.Fatalf("ensure tables %q: %v", table, err)
	}

	reg := registry.New()
	wireCodec := codec.New(reg)
	interceptor := codec.NewInterceptor(wireCodec, cfg.MaxMessageSize)
	_ = interceptor // wraps wireCodec with the message-size guard for whatever transport is wired in front of the façade

	obj := facade.New(store, wireCodec, reg)
	_ = obj

	log.Printf("pyonstore ready: datastore=%q profile=%s tracer=%v", table, cfg.Profile, cfg.TracerEnabled)

	<-ctx.Done()
	log.Printf("shutting down")
}
