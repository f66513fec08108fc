// Command hexar runs the radar fall-detection engine: it reads target
// frames from one or more LD2450 sensors (or a simulated source in dev
// mode), tracks targets per channel, scores fall risk, and serves the
// results over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hexar-systems/hexar/internal/api"
	"github.com/hexar-systems/hexar/internal/config"
	"github.com/hexar-systems/hexar/internal/fallstore"
	"github.com/hexar-systems/hexar/internal/ld2450"
	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/scan"
	"github.com/hexar-systems/hexar/internal/sim"
	"github.com/hexar-systems/hexar/internal/track"
	"github.com/hexar-systems/hexar/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run with a simulated detection source instead of serial sensors")
	listen     = flag.String("listen", ":8080", "Listen address")
	ports      = flag.String("ports", "/dev/ttyUSB0", "Comma-separated serial ports, one per channel (ignored in dev mode)")
	dbFile     = flag.String("db", "hexar.db", "Path to the sqlite database")
	configFile = flag.String("config", "", "Path to a tuning config JSON file")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("hexar %s starting", version.String())

	tuning := &config.TuningConfig{}
	if *configFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	tracker := track.NewTracker(tuning.TrackerConfig(), tuning.FallDetector(), nil)
	alerts := monitoring.NewAlertLog(0)

	store, err := fallstore.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	interval := tuning.GetScanInterval()
	runner := scan.NewRunner(tracker, interval, tuning.GetPruneTimeout(), nil)

	server := api.NewServer(api.ServerConfig{
		Address: *listen,
		Tracker: tracker,
		Runner:  runner,
		Store:   store,
		Alerts:  alerts,
		Tuning:  tuning,
	})
	hub := server.Hub()

	runner.OnFall(func(t track.Target) {
		eventID, err := store.RecordFall(t)
		if err != nil {
			monitoring.Logf("failed to record fall event: %v", err)
		}
		alerts.Raise(monitoring.SeverityCritical, monitoring.CategorySafety, "tracker",
			fmt.Sprintf("fall detected: target %d on channel %d (risk %.2f)", t.ID, t.Channel, t.FallRisk))
		hub.Broadcast(api.Event{
			Type:      "fall",
			Timestamp: time.Now(),
			Target:    &t,
			Payload:   map[string]any{"event_id": eventID},
		})
	})
	runner.OnPrune(func(removed []track.Target) {
		if err := store.RecordSummaries(removed); err != nil {
			monitoring.Logf("failed to record track summaries: %v", err)
		}
	})
	runner.OnCycle(capacityAlerter(alerts))
	runner.OnCycle(func(r scan.CycleResult) {
		if r.Detections == 0 && r.Live == 0 {
			return
		}
		hub.Broadcast(api.Event{
			Type:      "cycle",
			Timestamp: r.Timestamp,
			Payload:   r,
		})
	})

	detections := make(chan track.Detection, 256)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *devMode {
		source := sim.NewSource(tuning.GetChannelCount(), interval, 10*time.Second, time.Now().UnixNano())
		go func() {
			<-ctx.Done()
			source.Close()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			source.Run()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-source.Detections():
					if !ok {
						return
					}
					detections <- d
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		for i, path := range strings.Split(*ports, ",") {
			port, err := ld2450.OpenPort(strings.TrimSpace(path), ld2450.DefaultBaudRate)
			if err != nil {
				log.Fatalf("failed to open serial port %s: %v", path, err)
			}
			go func() {
				// Closing the port unblocks the reader so shutdown
				// can complete.
				<-ctx.Done()
				port.Close()
			}()

			reader := ld2450.NewReader(port, uint8(i))
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if err := reader.Stream(ctx, detections); err != nil && ctx.Err() == nil {
					monitoring.Logf("sensor %s stopped: %v", path, err)
					alerts.Raise(monitoring.SeverityWarning, monitoring.CategoryHardware, "ld2450",
						"sensor stream ended: "+path)
				}
			}(path)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(detections)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	runner.Close()
	wg.Wait()
	log.Print("shutdown complete")
}

// capacityAlerter returns a cycle handler that raises a system alert when
// detections are dropped to channel capacity. Edge-triggered: a saturated
// room raises one alert, not one per scan, and a clean cycle re-arms it.
// Cycle handlers run on the scan loop goroutine, so the armed flag needs
// no lock.
func capacityAlerter(alerts *monitoring.AlertLog) scan.CycleHandler {
	saturated := false
	return func(r scan.CycleResult) {
		if r.Dropped > 0 && !saturated {
			alerts.Raise(monitoring.SeverityWarning, monitoring.CategorySystem, "tracker",
				fmt.Sprintf("channel capacity exceeded: %d detections dropped this cycle", r.Dropped))
		}
		saturated = r.Dropped > 0
	}
}
