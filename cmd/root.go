package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/Starystars67/BeamNG-MP-Server-old/metrics"
	"github.com/Starystars67/BeamNG-MP-Server-old/server"
	"github.com/Starystars67/BeamNG-MP-Server-old/util"
)

type Config struct {
	// ConfigFile points at a JSON server config; when set, its udp_port must
	// be configured explicitly.
	ConfigFile string

	TCPPort int
	// UDPPort falls back to TCPPort+1 when running without a config file.
	UDPPort int

	Map         string
	Environment string

	// MetricsPort exposes prometheus metrics; 0 disables the endpoint.
	MetricsPort int

	LogLevel string
	LogFile  string
}

func (c Config) Validate() error {
	if c.TCPPort <= 0 || c.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp port %d", c.TCPPort)
	}
	if c.UDPPort < 0 || c.UDPPort > 65535 {
		return fmt.Errorf("invalid udp port %d", c.UDPPort)
	}
	return nil
}

// fileConfig mirrors the cfg/server.json layout.
type fileConfig struct {
	Env     string `json:"env"`
	Map     string `json:"map"`
	TCPPort int    `json:"tcp_port"`
	UDPPort int    `json:"udp_port"`
}

var (
	cobraConfig *Config
	rootCmd     = &cobra.Command{
		Use:           "beamng-mp-server",
		Short:         "BeamNG multiplayer relay server",
		Long:          "Rendezvous and fan-out relay server for BeamNG.drive multiplayer sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          execute,
	}
)

func init() {
	_ = util.InitLog("info", util.LogConsole)
	cobraConfig = &Config{}
	rootCmd.PersistentFlags().StringVarP(&cobraConfig.ConfigFile, "config", "c", "", "server config file (e.g. cfg/server.json); its udp_port must be set explicitly")
	rootCmd.PersistentFlags().IntVarP(&cobraConfig.TCPPort, "tcp-port", "t", 30813, "reliable-channel listen port")
	rootCmd.PersistentFlags().IntVarP(&cobraConfig.UDPPort, "udp-port", "u", 0, "unreliable-channel listen port (defaults to tcp-port+1)")
	rootCmd.PersistentFlags().StringVarP(&cobraConfig.Map, "map", "m", "", "initial map id (empty for no map selected)")
	rootCmd.PersistentFlags().StringVarP(&cobraConfig.Environment, "env", "e", "", "initial environment descriptor")
	rootCmd.PersistentFlags().IntVar(&cobraConfig.MetricsPort, "metrics-port", 0, "metrics endpoint http port. Metrics are accessible under host:metrics-port/metrics. 0 disables it")
	rootCmd.PersistentFlags().StringVar(&cobraConfig.LogLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&cobraConfig.LogFile, "log-file", util.LogConsole, "log file")

	util.SetFlagsFromEnvVars(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func waitForExitSignal() {
	osSigs := make(chan os.Signal, 1)
	signal.Notify(osSigs, syscall.SIGINT, syscall.SIGTERM)
	<-osSigs
}

// loadFileConfig overlays cfg/server.json style configuration on the flag
// values. A config file deployment must pin the UDP port itself instead of
// relying on the tcp-port+1 fallback.
func loadFileConfig(cfg *Config) error {
	fc := &fileConfig{}
	if _, err := util.ReadJson(cfg.ConfigFile, fc); err != nil {
		return fmt.Errorf("read config %s: %w", cfg.ConfigFile, err)
	}
	if fc.TCPPort == 0 {
		return fmt.Errorf("tcp_port is not defined in %s", cfg.ConfigFile)
	}
	if fc.UDPPort == 0 {
		return fmt.Errorf("udp_port is not defined in %s", cfg.ConfigFile)
	}
	cfg.TCPPort = fc.TCPPort
	cfg.UDPPort = fc.UDPPort
	cfg.Map = fc.Map
	cfg.Environment = fc.Env
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	if cobraConfig.ConfigFile != "" {
		if err := loadFileConfig(cobraConfig); err != nil {
			return err
		}
	}
	if cobraConfig.UDPPort == 0 {
		cobraConfig.UDPPort = cobraConfig.TCPPort + 1
	}

	if err := cobraConfig.Validate(); err != nil {
		log.Debugf("invalid config: %s", err)
		return fmt.Errorf("invalid config: %s", err)
	}

	if err := util.InitLog(cobraConfig.LogLevel, cobraConfig.LogFile); err != nil {
		log.Debugf("failed to initialize log: %s", err)
		return fmt.Errorf("failed to initialize log: %s", err)
	}

	// Resource creation phase (fail fast before starting any goroutines)

	var metricsServer *metrics.Server
	meter := otel.Meter("")
	if cobraConfig.MetricsPort > 0 {
		ms, err := metrics.NewServer(cobraConfig.MetricsPort, "")
		if err != nil {
			log.Debugf("setup metrics: %v", err)
			return fmt.Errorf("setup metrics: %v", err)
		}
		metricsServer = ms
		meter = ms.Meter
	}

	srvCfg := server.Config{
		Meter:       meter,
		TCPAddress:  fmt.Sprintf("0.0.0.0:%d", cobraConfig.TCPPort),
		UDPAddress:  fmt.Sprintf("0.0.0.0:%d", cobraConfig.UDPPort),
		InitialMap:  cobraConfig.Map,
		Environment: cobraConfig.Environment,
	}

	srv, err := server.NewServer(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create relay server: %v", err)
	}

	wg := sync.WaitGroup{}
	startServers(&wg, metricsServer, srv)

	waitForExitSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = shutdownServers(ctx, metricsServer, srv)
	wg.Wait()
	return err
}

func startServers(wg *sync.WaitGroup, metricsServer *metrics.Server, srv *server.Server) {
	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Infof("running metrics server: %s%s", metricsServer.Addr, metricsServer.Endpoint)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start metrics server: %v", err)
			}
		}()
	}

	log.Infof("starting relay server, protocol version %s", server.Version())
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Listen(); err != nil {
			log.Fatalf("failed to bind relay server: %s", err)
		}
	}()
}

func shutdownServers(ctx context.Context, metricsServer *metrics.Server, srv *server.Server) error {
	var errs error

	if err := srv.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to close relay server: %w", err))
	}

	if metricsServer != nil {
		log.Infof("shutting down metrics server")
		if err := metricsServer.Shutdown(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close metrics server: %w", err))
		}
	}

	return errs
}
