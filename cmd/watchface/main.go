// Command watchface runs the animated watchface on the e-paper panel, or
// previews it in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/timschmolka/go-watchface/config"
	"github.com/timschmolka/go-watchface/epd"
	"github.com/timschmolka/go-watchface/face"
	"github.com/timschmolka/go-watchface/frames"
	"github.com/timschmolka/go-watchface/scheduler"
	"github.com/timschmolka/go-watchface/sensor"
	"github.com/timschmolka/go-watchface/term"
	"github.com/timschmolka/go-watchface/watchface"
	"periph.io/x/conn/v3/physic"
)

// simulated accelerometer sample period
const simPeriod = 40 * time.Millisecond

type panel interface {
	face.Panel
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default: built-in settings)")
	backend := flag.String("backend", "", "override the configured backend: epd or term")
	snapshot := flag.String("snapshot", "", "write the current face to this image file and exit")
	logPath := flag.String("log", "", "append logs to this file instead of stderr")
	verbose := flag.Bool("v", false, "log mode transitions and dropped timer callbacks")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *backend != "" {
		cfg.Backend = *backend
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	switch {
	case *logPath != "":
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		log.SetOutput(f)
	case cfg.Backend == config.BackendTerm && *snapshot == "":
		// the preview owns the terminal
		log.SetOutput(io.Discard)
	}

	var tracef func(string, ...any)
	if *verbose {
		tracef = log.Printf
	}

	layout := face.DefaultLayout()
	store, err := openStore(cfg, layout.BitmapSize())
	if err != nil {
		log.Fatal(err)
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.IdleDay = cfg.Animations.IdleDay
	schedCfg.IdleNight = cfg.Animations.IdleNight
	schedCfg.PlayDay = cfg.Animations.PlayDay
	schedCfg.PlayNight = cfg.Animations.PlayNight
	schedCfg.Playback = cfg.Playback
	schedCfg.AnimateIdle = cfg.AnimateIdle
	schedCfg.Zone = cfg.Zone()
	schedCfg.Logf = log.Printf
	schedCfg.Tracef = tracef
	sched := scheduler.NewWithConfig(store, schedCfg)

	faceCfg := face.DefaultConfig()
	faceCfg.Layout = layout
	faceCfg.PartialRefresh = cfg.Display.PartialRefresh
	faceCfg.FullRefreshEvery = cfg.Display.FullRefreshEvery

	if *snapshot != "" {
		if err := writeSnapshot(*snapshot, sched, faceCfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		p     panel
		accel sensor.Accelerometer
		gauge sensor.Gauge
	)
	switch cfg.Backend {
	case config.BackendTerm:
		tp, err := term.Open(layout.Size.X, layout.Size.Y)
		if err != nil {
			log.Fatal(err)
		}
		sim := sensor.NewSimulator(simPeriod, max(1, int(cfg.Gesture.Poll/simPeriod)))
		p, accel, gauge = tp, sim, sim
		go tp.Poll(func(a term.Action) {
			switch a {
			case term.ActionFlick:
				sim.Flick()
			case term.ActionToggleCharging:
				sim.ToggleCharging()
			case term.ActionBatteryUp:
				sim.AdjustBattery(5)
			case term.ActionBatteryDown:
				sim.AdjustBattery(-5)
			case term.ActionQuit:
				stop()
			}
		})

	default:
		d, err := openDisplay(cfg, *verbose)
		if err != nil {
			log.Fatal(err)
		}
		p = d
		gauge = sensor.NewSysfsBattery(cfg.Battery.Supply)

		lis, err := sensor.OpenLIS3DH(cfg.Accel.Bus, cfg.Accel.Addr)
		switch {
		case errors.Is(err, sensor.ErrNoDevice):
			log.Printf("no accelerometer, gestures disabled: %v", err)
		case err != nil:
			log.Printf("accelerometer: %v", err)
		default:
			defer lis.Close()
			accel = lis
		}
	}
	defer p.Close()

	f, err := face.New(p, faceCfg)
	if err != nil {
		log.Fatal(err)
	}

	wcfg := watchface.DefaultConfig()
	wcfg.Logf = log.Printf
	wcfg.Tracef = tracef
	runner := watchface.NewWithConfig(sched, f, wcfg)

	logErr := func(err error) { log.Print(err) }
	if accel != nil {
		go sensor.PollAccel(ctx, accel, cfg.Gesture.Poll, runner.PostGesture, logErr)
	}
	go sensor.PollBattery(ctx, gauge, cfg.Battery.Poll, runner.PostBattery, logErr)

	log.Printf("watchface running (backend %s)", cfg.Backend)
	if err := runner.Run(ctx); err != nil {
		log.Print(err)
	}
	log.Print("watchface stopped")
}

func openStore(cfg config.Config, size image.Point) (frames.Store, error) {
	if cfg.Manifest == "" {
		return frames.NewBuiltinStore(size)
	}
	return frames.OpenManifest(cfg.Manifest, size)
}

func openDisplay(cfg config.Config, verbose bool) (*epd.Display, error) {
	dc := epd.DefaultConfig()
	dc.SPIPort = cfg.Display.SPIPort
	dc.DCPin = cfg.Display.DC
	dc.CSPin = cfg.Display.CS
	dc.RSTPin = cfg.Display.RST
	dc.BUSYPin = cfg.Display.Busy
	dc.SPIFrequency = physic.Frequency(cfg.Display.SPIHz) * physic.Hertz
	if verbose {
		dc.OnBusyStateChange = func(busy bool) {
			if busy {
				log.Println("display refreshing")
			} else {
				log.Println("display refresh complete")
			}
		}
	}
	return epd.NewWithConfig(dc)
}

// writeSnapshot renders the face for the current time without any
// hardware and saves it; the format follows the file extension.
func writeSnapshot(path string, sched *scheduler.Scheduler, faceCfg face.Config) error {
	f, err := face.New(face.Discard{}, faceCfg)
	if err != nil {
		return err
	}
	runner := watchface.New(sched, f)
	runner.Prime()
	return imaging.Save(f.Snapshot(), path)
}
