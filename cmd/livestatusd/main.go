package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oceanplexian/livestatus/internal/api/livestatus"
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/core"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func printUsage() {
	fmt.Printf("\nlivestatusd %s\n\n", livestatus.Version)
	fmt.Printf("Usage: %s [options] <socket> [key=value ...]\n", os.Args[0])
	fmt.Printf("       %s [options] -c <option_file>\n\n", os.Args[0])
	fmt.Println("Options:")
	fmt.Println()
	fmt.Println("  -c, --config FILE    Read key=value options from FILE, one or more per line")
	fmt.Println("  -V, --version        Print version information")
	fmt.Println("  -h, --help           Print this help message")
	fmt.Println()
	fmt.Println("Common keys: num_client_threads, max_queued_connections, query_timeout,")
	fmt.Println("idle_timeout, max_response_size, state_file, history_file, metrics_address.")
	fmt.Println()
}

func run(args []string) int {
	var optionFile string
	var options []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-h", "--help":
			printUsage()
			return 0
		case "-V", "--version":
			fmt.Printf("livestatusd %s\n", livestatus.Version)
			return 0
		case "-c", "--config":
			if i+1 == len(args) {
				fmt.Fprintln(os.Stderr, "Option -c needs a file name")
				return 2
			}
			i++
			optionFile = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "Unknown option: %s\n", arg)
				printUsage()
				return 2
			}
			options = append(options, arg)
		}
	}
	if optionFile != "" && len(options) > 0 {
		fmt.Fprintln(os.Stderr, "Options are taken either from -c or from the command line")
		return 2
	}

	boot, _ := logging.New(logging.Options{})
	var cfg *config.Config
	if optionFile != "" {
		var err error
		if cfg, err = config.ReadFile(optionFile, boot); err != nil {
			boot.WithError(err).Error("cannot read options")
			return 1
		}
	} else {
		cfg = config.Parse(strings.Join(options, " "), boot)
	}

	log, closer := logging.New(logging.Options{Debug: cfg.Debug, File: cfg.LogFile})
	defer closer.Close()
	if err := serve(cfg, log); err != nil {
		log.WithError(err).Error("livestatus failed")
		return 1
	}
	return 0
}

func serve(cfg *config.Config, log *logrus.Logger) error {
	log.Infof("livestatusd %s starting, socket %s", livestatus.Version, cfg.SocketPath)
	mc, err := core.New(cfg, log.WithField("component", "core"))
	if err != nil {
		return err
	}
	defer mc.Close()

	store, err := livestatus.NewStore(mc, cfg, log)
	if err != nil {
		return err
	}
	srv := livestatus.NewServer(store, cfg, log)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The daemon stops with the server.
		defer stop()
		return srv.Serve(ctx)
	})
	g.Go(func() error { return mc.Run(ctx, core.HousekeepingInterval) })
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				log.Info("caught SIGHUP, reloading state")
				if err := mc.Reload(); err != nil {
					log.WithError(err).Error("reload failed, keeping the previous state")
				}
			}
		}
	})
	if cfg.MetricsAddress != "" {
		metrics, err := metricsServer(cfg.MetricsAddress, srv)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Infof("serving metrics on %s", cfg.MetricsAddress)
			if err := metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metrics.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("livestatusd stopped")
	return err
}

func metricsServer(addr string, srv *livestatus.Server) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := counters.Register(reg); err != nil {
		return nil, err
	}
	if err := livestatus.RegisterMetrics(reg, srv); err != nil {
		return nil, err
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}, nil
}
