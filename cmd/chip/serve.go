package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/10happee/chip/internal/api"
	"github.com/10happee/chip/internal/audio"
	"github.com/10happee/chip/internal/config"
	"github.com/10happee/chip/internal/grid"
	"github.com/10happee/chip/internal/midiout"
	"github.com/10happee/chip/internal/sequencer"
	"github.com/10happee/chip/internal/stream"
	"github.com/10happee/chip/internal/tone"
	"github.com/10happee/chip/internal/web"
)

var cfg = config.Load()

func init() {
	f := serveCmd.Flags()
	f.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	f.StringVar(&cfg.Variant, "variant", cfg.Variant, "grid variant: flat or roll")
	f.IntVar(&cfg.Tempo, "tempo", cfg.Tempo, "tempo in beats per minute")
	f.StringVar(&cfg.Timbre, "timbre", cfg.Timbre, "sine, square, sawtooth, triangle or custom")
	f.Float64Var(&cfg.CellSize, "cell-size", cfg.CellSize, "piano-roll cell width in pixels")
	f.DurationVar(&cfg.IdleTTL, "resize-ttl", cfg.IdleTTL, "idle time before a resize drag is ended")
	f.StringVar(&cfg.MIDIPort, "midi-port", cfg.MIDIPort, "MIDI output port (empty disables MIDI)")
	f.IntVar(&cfg.MIDIChannel, "midi-channel", cfg.MIDIChannel, "MIDI channel 1-16")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the sequencer server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg)
	},
}

func serve(cfg config.Config) error {
	timbre, err := tone.ParseTimbre(cfg.Timbre)
	if err != nil {
		return err
	}
	if _, err := sequencer.ParseTempo(strconv.Itoa(cfg.Tempo)); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("chip starting up...")

	// Software sink: mixer renders voices into PCM frames
	mixer := audio.NewMixer()
	go mixer.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, mixer.Frames())

	sink := tone.Sink(mixer)
	if cfg.MIDIPort != "" {
		out, err := midiout.Open(cfg.MIDIPort, cfg.MIDIChannel)
		if err != nil {
			return err
		}
		defer midiout.Close()
		sink = tone.Multi(mixer, out)
	} else {
		log.Println("MIDI not configured (set CHIP_MIDI_PORT to enable)")
	}

	var (
		pattern sequencer.Pattern
		opts    = api.Options{CellSize: cfg.CellSize, SessionTTL: cfg.IdleTTL}
	)
	switch cfg.Variant {
	case api.VariantFlat:
		opts.Steps = grid.NewSteps(grid.FlatSteps)
		pattern = sequencer.Flat(opts.Steps)
	case api.VariantRoll:
		opts.Roll = grid.NewRoll(grid.RollSteps, grid.RollPitches)
		pattern = sequencer.PianoRoll(opts.Roll)
	default:
		return fmt.Errorf("variant %q: %w", cfg.Variant, sequencer.ErrInvalidConfiguration)
	}

	sched := sequencer.NewScheduler(pattern, sink, sequencer.SchedulerConfig{
		Tempo:  cfg.Tempo,
		Timbre: timbre,
	})
	defer sched.Stop()

	server := api.New(sched, opts)
	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	router := mux.NewRouter().StrictSlash(true)
	server.Routes(router)
	router.Handle("/offer", webrtcHandler).Methods(http.MethodPost)
	router.Handle("/stream", stream.NewHTTPHandler(broadcaster)).Methods(http.MethodGet)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: api.CORS(router)}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		httpServer.Close()
	}()

	log.Printf("chip (%s, %d bpm, %s) live on %s", server.Variant(), cfg.Tempo, timbre, addr)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
