// Package main starts the auction house HTTP service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	auctionhousecmd "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/cmd/auctionhouse"
)

func main() {
	cfg, err := auctionhousecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[AUCTIONHOUSE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := auctionhousecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
