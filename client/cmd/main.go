package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/txn-kv-store/client"
	"github.com/txn-kv-store/common"
	"github.com/txn-kv-store/config"
	flag "github.com/spf13/pflag"
)

const (
	DefaultLogFile = "client.log"
)

// Command line parameters
var (
	configPath string
	clientID   string
	logFile    string
	logLevel   string
)

func init() {
	flag.StringVarP(&configPath, "config", "c", config.DefaultConfigFilePath, "Cluster configuration file")
	flag.StringVarP(&clientID, "id", "i", "", "Client identity (generated when empty)")
	flag.StringVarP(&logFile, "log-file", "l", DefaultLogFile, "Log file; the terminal is kept for the shell")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger, err := common.NewLogger(logLevel, logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cluster, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load cluster config: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.Connect(ctx, logger, clientID, cluster)
	defer c.Close()

	fmt.Printf("Client %s connected to %d servers %v\n", c.ID, len(cluster.Servers), cluster.ServerNames())
	if err := client.NewShell(c, os.Stdout).Run(ctx); err != nil {
		logger.Errorf("Shell stopped: %s", err)
	}
	fmt.Println("Stop client")
}
