package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/txn-kv-store/common"
	"github.com/txn-kv-store/config"
	"github.com/txn-kv-store/coordinator"
	httpd "github.com/txn-kv-store/http"
	"github.com/txn-kv-store/store"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const (
	DefaultStateFile = "coordinator.db"
)

// Command line parameters
var (
	isCoordinator bool
	nodeName      string
	listenAddress string
	configPath    string
	httpAddress   string
	statePath     string
	logFile       string
	logLevel      string
)

func init() {
	flag.BoolVarP(&isCoordinator, "coordinator", "c", false, "Start as coordinator")
	flag.StringVarP(&nodeName, "name", "n", "", "Server name as used in <server>.<key> targets")
	flag.StringVarP(&listenAddress, "listen", "l", "", "Listen address, taken from the cluster config if not set")
	flag.StringVar(&configPath, "config", config.DefaultConfigFilePath, "Cluster configuration file")
	flag.StringVar(&httpAddress, "http", "", "Debug HTTP address (metrics, state), disabled if not set")
	flag.StringVarP(&statePath, "state", "s", DefaultStateFile, "Coordinator state file, in-memory only if empty")
	flag.StringVar(&logFile, "log-file", "", "Log file, stderr if not set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
}

type node interface {
	Start() error
	Close() error
	State() (interface{}, error)
}

func main() {
	flag.Parse()
	logger, err := common.NewLogger(logLevel, logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.WithField("component", "main")

	n, err := newNode(logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := n.Start(); err != nil {
		log.Fatalf("Failed to start: %s", err)
	}

	if httpAddress != "" {
		h := httpd.NewService(logger, httpAddress, n)
		if err := h.Start(); err != nil {
			log.Fatalf("Failed to start debug service: %s", err)
		}
		defer h.Close()
	}

	log.Info("txnkv started successfully")
	terminate := make(chan os.Signal, 1)
	signal.Notify(terminate, os.Interrupt, syscall.SIGTERM)
	<-terminate
	log.Info("txnkv exiting")
	if err := n.Close(); err != nil {
		log.Errorf("Close: %s", err)
	}
}

// newNode builds a coordinator or a named storage server. Without
// --listen, the address comes from the cluster config.
func newNode(logger *log.Logger) (node, error) {
	addr := listenAddress
	if addr == "" {
		cluster, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if isCoordinator {
			addr = cluster.Coordinator
		} else if addr = cluster.Servers[nodeName]; addr == "" {
			return nil, errors.Errorf("server %q is not in %s", nodeName, configPath)
		}
	}

	if isCoordinator {
		authority, err := coordinator.NewAuthority(logger, statePath, coordinator.DefaultReserveWindow)
		if err != nil {
			return nil, err
		}
		return coordinator.NewCoordinator(logger, nodeName, addr, authority), nil
	}
	if nodeName == "" {
		return nil, errors.New("--name is required for a storage server")
	}
	return store.NewStore(logger, nodeName, addr), nil
}
