package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nslz/broquet/internal/broker"
	"github.com/nslz/broquet/internal/config"
	"github.com/nslz/broquet/internal/credentials"
	"github.com/nslz/broquet/internal/logger"
	"github.com/nslz/broquet/internal/transport"
)

const credentialsFile = "credentials.txt"

func gracefulShutdown(tcpServer *transport.TCPServer, b *broker.Broker, cancel context.CancelFunc, done chan struct{}, log *logger.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("Graceful shutdown has triggered...")

	defer cancel()
	if err := tcpServer.Stop(); err != nil {
		log.LogError(err, "Failed stopping listener")
	}
	b.Close()
	time.Sleep(1 * time.Second)

	close(done)
}

func logOutput(logFile string) (io.Writer, error) {
	switch logFile {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Invalid amount of arguments (Run with %s <config_file>)\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.FromFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		os.Exit(1)
	}

	out, err := logOutput(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{
		Level:   logger.LevelInfo,
		Format:  "text",
		Output:  out,
		Service: "broquet",
	})

	var usersDB *sql.DB
	if cfg.UsersDB != "" {
		usersDB, err = sql.Open("sqlite3", cfg.UsersDB)
		if err != nil {
			log.LogError(err, "Failed to open users database")
			os.Exit(1)
		}
	}

	done := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())

	b := broker.New(log)
	refresher := credentials.NewRefresher(b.Credentials, credentialsFile, usersDB, credentials.DefaultRefreshInterval, log)

	go refresher.Run(ctx)
	go b.RunDispatcher(ctx)
	go b.RunRetransmitter(ctx)

	srv := transport.New(cfg.Port, b, log)
	if err := srv.Start(ctx); err != nil {
		log.LogError(err, "Failed to start listener")
		os.Exit(1)
	}
	log.Info("Server started listening at " + cfg.Port)

	go gracefulShutdown(srv, b, cancel, done, log)

	<-done
	log.Info("Graceful shutdown complete.")
}
