// Command vmpagerd is the demo/test harness described in SPEC_FULL.md §2:
// it wires the simulated collaborators from kernel/mem/iface/sim (or a
// real file-backed swap device from kernel/mem/iface/blockfile) to the
// vmm.System core, runs the end-to-end scenarios from spec.md §8 on
// request, and serves Prometheus metrics.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/gopheros/vmpager/kernel/config"
	"github.com/gopheros/vmpager/kernel/mem/frame"
	"github.com/gopheros/vmpager/kernel/mem/iface"
	"github.com/gopheros/vmpager/kernel/mem/iface/blockfile"
	"github.com/gopheros/vmpager/kernel/mem/iface/sim"
	"github.com/gopheros/vmpager/kernel/mem/page"
	"github.com/gopheros/vmpager/kernel/mem/swap"
	"github.com/gopheros/vmpager/kernel/mem/vmm"
	"github.com/gopheros/vmpager/kernel/metrics"
)

var (
	app          = kingpin.New("vmpagerd", "Demand-paging subsystem demo harness.")
	configPath   = app.Flag("config", "Path to a vmpager.yaml config file.").String()
	scenarioFlag = app.Flag("scenario", "Which spec scenario to run (s1-s6, all).").Default("all").String()
	metricsAddr  = app.Flag("metrics-addr", "Address to serve /metrics on; empty disables serving.").Default(":9477").String()
	logLevel     = app.Flag("log-level", "zerolog level (debug, info, warn, error).").Default("info").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}

	sys, m, cleanup, err := build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build system")
	}
	defer cleanup()

	if _, err := sys.CreateSpace(demoSpace); err != nil {
		log.Fatal().Err(err).Msg("create demo address space")
	}

	if err := mountRegions(sys, demoSpace, cfg, m, log); err != nil {
		log.Fatal().Err(err).Msg("mount configured regions")
	}

	for _, name := range scenariosToRun(*scenarioFlag) {
		if err := runScenario(name, log); err != nil {
			log.Error().Str("scenario", name).Err(err).Msg("scenario failed")
		} else {
			log.Info().Str("scenario", name).Msg("scenario passed")
		}
	}

	if *metricsAddr == "" {
		return
	}
	serveMetrics(*metricsAddr, m, log)
}

func defaultConfig() *config.Config {
	return &config.Config{FrameCapacity: 8, SwapSlots: 8}
}

// build assembles the collaborator stack and the vmm.System per cfg. The
// returned cleanup func releases any real OS resources (an open swap file).
func build(cfg *config.Config, log zerolog.Logger) (*vmm.System, *metrics.Metrics, func(), error) {
	mmu := sim.NewMMU()
	alloc := sim.NewAllocator(cfg.FrameCapacity)

	var device iface.BlockDevice
	cleanup := func() {}
	if cfg.SwapDevicePath != "" {
		dev, err := blockfile.Open(cfg.SwapDevicePath, uint64(cfg.SwapSlots)*iface.SectorsPerPage)
		if err != nil {
			return nil, nil, nil, err
		}
		device = dev
		cleanup = func() { dev.Close() }
	} else {
		device = sim.NewBlockDevice(uint64(cfg.SwapSlots) * iface.SectorsPerPage)
	}

	ft := frame.NewTable(alloc, mmu)
	env := &page.Env{MMU: mmu, Swap: swap.New(device)}
	sys := vmm.New(ft, env)
	m := metrics.New(log)

	return sys, m, cleanup, nil
}

func mountRegions(sys *vmm.System, space iface.SpaceID, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) error {
	active := 0
	for _, r := range cfg.Regions {
		contents, err := os.ReadFile(r.File)
		if err != nil {
			return err
		}
		fh := sim.NewFileHandle(contents)

		addrU, err := strconv.ParseUint(strings.TrimPrefix(r.Addr, "0x"), 16, 64)
		if err != nil {
			return err
		}
		length := r.Length
		if length == 0 {
			length = len(contents)
		}

		if _, err := sys.Mmap(space, iface.VA(addrU), length, r.Writable, fh, r.Offset); err != nil {
			return err
		}
		active++
		m.RecordMmap(active)
		log.Info().Str("addr", r.Addr).Str("file", r.File).Int("length", length).Msg("mmap region mounted")
	}
	return nil
}

func scenariosToRun(flag string) []string {
	if flag == "all" {
		return []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	}
	return []string{flag}
}

func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) {
	reg := newRegistry(m)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info().Str("addr", addr).Msg("serving metrics")
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
