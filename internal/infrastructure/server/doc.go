// Package server assembles the document host: sandbox engines, the
// document manager, guest loading, middleware and routes.
//
//	srv, err := server.NewServer(ctx, config.LoadOrDefault())
//	srv.Seed(ctx)
//	srv.Run(ctx)
//	srv.Close(ctx)
package server
