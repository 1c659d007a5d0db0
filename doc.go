// Package duckbridge bridges Arrow data sources into a DuckDB-style scan
// host and back.
//
// A source is bound once into a scan factory (package scan): a
// materialized arrow.Table through NewTableFactory, or an opaque holder
// through NewHolderFactory. The host then asks the factory for its schema,
// cardinality and per-column statistics and starts independent produce
// calls carrying a projection and a set of pushed filters.
//
// Pushed filters (package filter) are translated into Arrow expressions
// by package pushdown and evaluated in-process, or flattened into the
// wire IR of package flatir for holders that evaluate them themselves.
// Package stats derives min, max, null and distinct statistics from
// Arrow columns, and package export hands produced streams across the
// Arrow C data interface.
//
// # Serving a factory
//
//	cfg, err := duckbridge.ConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	factory, err := duckbridge.NewTableFactory(ctx, table, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer factory.Close()
//
//	scfg := duckbridge.ServerConfig{Config: cfg, Auth: duckbridge.NoAuth()}
//	grpcServer := grpc.NewServer(duckbridge.ServerOptions(scfg)...)
//	srv, err := duckbridge.NewServer(grpcServer, factory, scfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
//
// # Reading a remote factory
//
//	f, h, err := duckbridge.RemoteFactory(ctx, "localhost:50051", cfg, flight.HolderOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//	defer f.Close()
//	s, err := f.Produce(ctx, scan.Params{Columns: []string{"id"}})
//
// # Configuration
//
// ConfigFromEnv reads DUCKBRIDGE_ENABLE_STATISTICS,
// DUCKBRIDGE_ENABLE_DISTINCT_COUNT, DUCKBRIDGE_CHUNK_SIZE and
// DUCKBRIDGE_LOG_LEVEL. The values are read once; factories never consult
// the environment.
package duckbridge
