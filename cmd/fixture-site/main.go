// Fixture Site
//
// Serves a small website with known-good and known-broken resources plus a
// jsonplaceholder-shaped /posts API. Point sitecheck at it to try the checks
// without touching a real site:
//
//	go run ./cmd/fixture-site -addr :8080
//	sitecheck resources --url http://localhost:8080
//	sitecheck posts --api-url http://localhost:8080/posts
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thesyncim/sitecheck/cmd/fixture-site/server"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	postsFile := flag.String("posts", "", "JSON file served from /posts (default: built-in sample)")
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.Addr = *addr

	if *postsFile != "" {
		data, err := os.ReadFile(*postsFile)
		if err != nil {
			log.Fatalf("Failed to read posts file: %v", err)
		}
		cfg.Posts = data
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	listenAddr, err := srv.Start()
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
