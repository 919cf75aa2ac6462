package main

import (
	"flag"
	"fmt"
	"os"

	"agora/internal/client"
	"agora/internal/config"
	"agora/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.agora/config.yaml)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	log := utils.NewLogger(cfg.Debug)
	defer log.Sync()

	c, err := client.New(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start client:", err)
		os.Exit(1)
	}
	if err := c.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
