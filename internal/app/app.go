package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/TrueAndyT/voice-ass/internal/bridge"
	"github.com/TrueAndyT/voice-ass/internal/config"
	"github.com/TrueAndyT/voice-ass/internal/conversation"
	"github.com/TrueAndyT/voice-ass/internal/dashboard"
	"github.com/TrueAndyT/voice-ass/internal/intent"
	"github.com/TrueAndyT/voice-ass/internal/supervisor"
	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
	"github.com/TrueAndyT/voice-ass/pkg/audio/capture"
	"github.com/TrueAndyT/voice-ass/pkg/audio/chime"
	"github.com/TrueAndyT/voice-ass/pkg/audio/mic"
	"github.com/TrueAndyT/voice-ass/pkg/audio/noisefloor"
	"github.com/TrueAndyT/voice-ass/pkg/audio/vadgate"
	"github.com/TrueAndyT/voice-ass/pkg/audio/wake"
	"github.com/TrueAndyT/voice-ass/pkg/workers/llm"
	"github.com/TrueAndyT/voice-ass/pkg/workers/stt"
	"github.com/TrueAndyT/voice-ass/pkg/workers/tts"
)

const readyAnnouncement = "Hi Master! Alexa at your services."

// App holds the explicitly constructed dependency graph. No package-level
// mutable state anywhere in the pipeline; everything flows from here.
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	Perf   *Logger.PerfLogger

	sup       *supervisor.Supervisor
	specs     []supervisor.Spec
	floor     *noisefloor.Floor
	gate      *vadgate.Gate
	scorer    *wake.OnnxScorer
	detector  *wake.Detector
	wakeChime *chime.Player

	sttClient *stt.Client
	llmClient *llm.Client
	ttsClient *tts.Client
	memory    *intent.MemoryHandler

	bridge *bridge.Bridge
	dash   *dashboard.Server
}

// New wires everything that does not require the microphone or running
// workers. The wake model is loaded here so a missing model file fails fast.
func New(cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Perf:   Logger.NewPerfLogger(cfg.LogDir, logger),
	}

	// Local intent handlers, consulted before any model call.
	responses := intent.LoadResponses(filepath.Join(cfg.ConfigDir, "llm_responses.json"))
	registry := intent.NewRegistry(intent.NewDetector(), logger.Component("intent"))
	notes, err := intent.NewNoteHandler(filepath.Join(cfg.ConfigDir, "notes.json"), responses)
	if err != nil {
		return nil, fmt.Errorf("note handler: %w", err)
	}
	registry.Register(intent.Note, notes)
	a.memory, err = intent.NewMemoryHandler(filepath.Join(cfg.ConfigDir, "memory.log"), responses)
	if err != nil {
		return nil, fmt.Errorf("memory handler: %w", err)
	}
	registry.Register(intent.Memory, a.memory)

	// Worker clients.
	a.sttClient = stt.NewClient(cfg.Workers.STTURL(), logger.Component("stt"), a.Perf)
	a.llmClient = llm.NewClient(cfg.Workers.LLMURL(), registry, logger.Component("llm"))
	a.ttsClient = tts.NewClient(cfg.Workers.TTSURL(), logger.Component("tts"))

	a.bridge = bridge.New(a.llmClient, ttsSpeaker{a.ttsClient},
		cfg.Bridge.MinChunkSize, cfg.Bridge.SentenceBoundary,
		logger.Component("bridge"), a.Perf)

	// Audio-side components.
	packetVAD, err := vadgate.NewPacketVAD(logger.Component("vad"))
	if err != nil {
		return nil, fmt.Errorf("packet vad: %w", err)
	}
	a.floor = noisefloor.New(packetVAD, cfg.Audio.NoiseWindow, cfg.Audio.NoiseMultiplier)
	a.gate = vadgate.New(packetVAD, a.floor, logger.Component("vad"))

	a.scorer, err = wake.NewOnnxScorer(cfg.Wake.ModelPaths, cfg.Wake.OnnxLibrary)
	if err != nil {
		return nil, err
	}
	a.detector = wake.NewDetector(a.scorer, a.gate, a.floor, logger.Component("wake"))
	a.wakeChime = chime.New(filepath.Join(cfg.ConfigDir, "sounds", "kwd_success.wav"), logger.Component("chime"))

	a.sup = supervisor.New(logger.Component("supervisor"))
	a.specs = []supervisor.Spec{
		{Name: "tts", Command: cfg.Workers.TTSCommand, Ready: a.ttsClient.Health},
		{Name: "stt", Command: cfg.Workers.STTCommand, Ready: a.sttClient.Health},
		{Name: "llm", Command: cfg.Workers.LLMCommand, Ready: a.llmClient.Health},
	}

	if cfg.Dashboard.Enabled {
		a.dash = dashboard.NewServer(logger.Component("dashboard"))
	}
	return a, nil
}

// Shutdown tears the workers down; wired to defer and the signal path so it
// runs exactly once on every exit.
func (a *App) Shutdown() {
	a.sup.Shutdown()
	a.scorer.Close()
}

// Run starts the workers, opens the microphone, and drives the audio loop
// until ctx is cancelled or the capture device is lost.
func (a *App) Run(ctx context.Context) error {
	log := a.Logger.Component("main")

	if a.dash != nil {
		go func() {
			if err := a.dash.Run(a.Config.Dashboard.Addr); err != nil {
				log.Warnf("dashboard unavailable: %v", err)
			}
		}()
	}

	startupBegin := time.Now()
	if err := a.sup.Start(ctx, a.specs); err != nil {
		return err
	}
	a.Perf.Record("app_startup", time.Since(startupBegin), map[string]any{"workers": len(a.specs)})
	a.warmup(ctx, log)

	if a.dash != nil {
		a.dash.SetWorkers(a.sup.Healthy(ctx, a.specs))
	}

	source, err := mic.Open(log)
	if err != nil {
		return err
	}
	defer source.Close()

	capturer := capture.New(source, a.gate, a.floor, a.Logger.Component("capture"))
	session := conversation.NewSession(a.Config.ConfigDir, a.Config.LogDir,
		a.memory.Entries(), a.Logger.Component("session"))

	var observer conversation.Observer
	if a.dash != nil {
		observer = dashObserver{a.dash}
	}
	controller := conversation.NewController(conversation.ControllerDeps{
		Recorder:        capturer,
		Transcriber:     a.sttClient,
		Responder:       a.bridge,
		Wake:            a.detector,
		Chime:           a.wakeChime,
		Session:         session,
		CaptureSilence:  a.Config.Audio.CaptureSilence(),
		FollowupSilence: a.Config.Audio.FollowupSilence(),
		Observer:        observer,
		Logger:          a.Logger.Component("conversation"),
		Perf:            a.Perf,
		Transcriptions:  Logger.NewTranscriptionLog(a.Config.LogDir, a.Logger),
	})

	if err := a.ttsClient.Speak(ctx, readyAnnouncement); err != nil {
		log.Warnf("could not announce readiness: %v", err)
	}
	a.detector.Enable()
	a.wakeChime.Play()
	log.Infof("wake word detection active")

	return a.audioLoop(ctx, source, controller, log)
}

// audioLoop is the single-threaded cooperative loop: one frame at a time,
// strict arrival order, recoverable errors retried after a short back-off.
func (a *App) audioLoop(ctx context.Context, source *mic.Source, controller *conversation.Controller, log *Logger.Logger) error {
	lastPublish := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := source.Read()
		if err != nil {
			if errors.Is(err, audio.ErrDeviceLost) {
				return err
			}
			log.Errorf("audio read error: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		a.floor.Update(frame)
		if a.dash != nil && time.Since(lastPublish) >= time.Second {
			a.dash.SetAudio(frame.RMS(), a.floor.Threshold())
			lastPublish = time.Now()
		}

		if ev := a.detector.Process(frame); ev != nil {
			controller.HandleWake(ctx)
		}
	}
}

// warmup primes the heavyweight models; failures degrade the first turn but
// never block startup.
func (a *App) warmup(ctx context.Context, log *Logger.Logger) {
	begin := time.Now()
	if err := a.scorer.Warmup(); err != nil {
		log.Warnf("wake model warmup failed: %v", err)
	}
	if err := a.ttsClient.Warmup(ctx); err != nil {
		log.Warnf("tts warmup failed: %v", err)
	}
	if err := a.llmClient.Warmup(ctx); err != nil {
		log.Warnf("llm warmup failed: %v", err)
	}
	a.Perf.Record("model_warmup", time.Since(begin), nil)
}

// ttsSpeaker adapts the TTS client to the bridge's Speaker interface.
type ttsSpeaker struct {
	client *tts.Client
}

func (t ttsSpeaker) Speak(ctx context.Context, text string) error {
	return t.client.Speak(ctx, text)
}

// dashObserver adapts the dashboard to the controller's Observer interface.
type dashObserver struct {
	srv *dashboard.Server
}

func (d dashObserver) StateChanged(state string) { d.srv.SetState(state) }
func (d dashObserver) Exchange(t, i, r string)   { d.srv.SetExchange(t, i, r) }
