// Package logging builds the process logger on uber/zap.
//
// Production logs are JSON; development logs are coloured console lines.
// Components receive a named child logger so every line carries its
// origin:
//
//	log, _ := logging.New(logging.Config{Level: "info"})
//	mgr := document.NewManager(wasm, pool).WithLogger(log.Named("documents"))
//
// Middleware emits one structured line per HTTP request.
package logging
