package conversation

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/TrueAndyT/voice-ass/internal/bridge"
	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Controller states.
const (
	StateIdle              = "idle"
	StateCapturing         = "capturing"
	StateTranscribing      = "transcribing"
	StateResponding        = "responding"
	StateAwaitingFollowup  = "awaiting_followup"
	StateFollowupCapturing = "followup_capturing"
)

// Recorder captures one utterance with the given trailing-silence window.
type Recorder interface {
	Record(ctx context.Context, trailingSilence time.Duration) ([]byte, error)
}

// Transcriber turns an utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Responder generates and speaks the reply for a composed prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (bridge.Result, error)
}

// WakeControl arms and disarms wake detection.
type WakeControl interface {
	Enable()
	Disable()
}

// Chimer plays the wake acknowledgement sound.
type Chimer interface {
	Play()
}

// Observer receives advisory updates for the dashboard. May be nil.
type Observer interface {
	StateChanged(state string)
	Exchange(transcription, intent, response string)
}

// Controller owns the conversation state machine and drives one wake
// interaction plus its follow-up loop. It is called from the audio loop only;
// a turn runs to completion before the next frame is processed.
type Controller struct {
	machine  *fsm.FSM
	recorder Recorder
	stt      Transcriber
	bridge   Responder
	wake     WakeControl
	chime    Chimer
	session  *Session

	captureSilence  time.Duration
	followupSilence time.Duration

	observer Observer

	logger *Logger.Logger
	perf   *Logger.PerfLogger
	tlog   *Logger.TranscriptionLog
}

type ControllerDeps struct {
	Recorder        Recorder
	Transcriber     Transcriber
	Responder       Responder
	Wake            WakeControl
	Chime           Chimer
	Session         *Session
	CaptureSilence  time.Duration
	FollowupSilence time.Duration
	Observer        Observer
	Logger          *Logger.Logger
	Perf            *Logger.PerfLogger
	Transcriptions  *Logger.TranscriptionLog
}

func NewController(deps ControllerDeps) *Controller {
	c := &Controller{
		recorder:        deps.Recorder,
		stt:             deps.Transcriber,
		bridge:          deps.Responder,
		wake:            deps.Wake,
		chime:           deps.Chime,
		session:         deps.Session,
		captureSilence:  deps.CaptureSilence,
		followupSilence: deps.FollowupSilence,
		observer:        deps.Observer,
		logger:          deps.Logger,
		perf:            deps.Perf,
		tlog:            deps.Transcriptions,
	}

	c.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "wake", Src: []string{StateIdle}, Dst: StateCapturing},
			{Name: "captured", Src: []string{StateCapturing}, Dst: StateTranscribing},
			{Name: "transcribed", Src: []string{StateTranscribing}, Dst: StateResponding},
			{Name: "responded", Src: []string{StateResponding}, Dst: StateAwaitingFollowup},
			{Name: "followup_speech", Src: []string{StateAwaitingFollowup}, Dst: StateFollowupCapturing},
			{Name: "followup_captured", Src: []string{StateFollowupCapturing}, Dst: StateResponding},
			{Name: "timeout", Src: []string{StateAwaitingFollowup}, Dst: StateIdle},
			{Name: "empty", Src: []string{StateCapturing, StateTranscribing, StateFollowupCapturing}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debugf("conversation: %s -> %s (%s)", e.Src, e.Dst, e.Event)
				if c.observer != nil {
					c.observer.StateChanged(e.Dst)
				}
			},
		},
	)
	return c
}

// State reports the current machine state.
func (c *Controller) State() string {
	return c.machine.Current()
}

// HandleWake runs one complete interaction. Wake events arriving in any state
// other than Idle are no-ops. Any fault inside the turn is logged and the
// controller returns to Idle; the main loop never crashes on a turn error.
func (c *Controller) HandleWake(ctx context.Context) {
	if c.machine.Current() != StateIdle {
		c.logger.Debugf("wake ignored in state %s", c.machine.Current())
		return
	}

	// The assistant's own voice must not wake it; detection stays off until
	// the controller is back in Idle.
	c.wake.Disable()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("turn panicked: %v", r)
		}
		if c.machine.Current() != StateIdle {
			c.machine.SetState(StateIdle)
		}
		c.wake.Enable()
	}()

	if c.chime != nil {
		c.chime.Play()
	}

	wakeAt := time.Now()
	c.event(ctx, "wake")

	if !c.runTurn(ctx, c.captureSilence, wakeAt) {
		return
	}

	// Follow-up loop: keep the dialog open until the user stays quiet.
	for c.machine.Current() == StateAwaitingFollowup {
		pcm, err := c.recorder.Record(ctx, c.followupSilence)
		if err != nil {
			c.logger.Errorf("follow-up capture failed: %v", err)
			c.event(ctx, "timeout")
			return
		}
		if len(pcm) == 0 {
			c.logger.Infof("dialog ended due to inactivity")
			c.event(ctx, "timeout")
			return
		}
		c.event(ctx, "followup_speech")

		text, err := c.stt.Transcribe(ctx, pcm)
		if err != nil || text == "" {
			if err != nil {
				c.logger.Errorf("follow-up transcription failed: %v", err)
			} else {
				c.logger.Infof("dialog ended due to inactivity")
			}
			c.event(ctx, "empty")
			return
		}
		c.event(ctx, "followup_captured")

		if !c.respond(ctx, text, time.Now()) {
			return
		}
	}
}

// runTurn performs the post-wake capture/transcribe/respond sequence.
// Returns false when the turn ended (back in Idle).
func (c *Controller) runTurn(ctx context.Context, silence time.Duration, wakeAt time.Time) bool {
	pcm, err := c.recorder.Record(ctx, silence)
	if err != nil {
		c.logger.Errorf("capture failed: %v", err)
		c.event(ctx, "empty")
		return false
	}
	if len(pcm) == 0 {
		c.logger.Warnf("no audio recorded after wake")
		c.event(ctx, "empty")
		return false
	}
	c.event(ctx, "captured")
	if c.perf != nil {
		c.perf.Record("wake_to_transcription_start", time.Since(wakeAt), nil)
	}

	text, err := c.stt.Transcribe(ctx, pcm)
	if err != nil {
		c.logger.Errorf("transcription failed: %v", err)
		c.event(ctx, "empty")
		return false
	}
	if text == "" {
		c.logger.Warnf("empty transcription, returning to idle")
		c.event(ctx, "empty")
		return false
	}
	c.event(ctx, "transcribed")

	return c.respond(ctx, text, time.Now())
}

// respond routes the transcription through the streaming bridge and records
// the exchange. Returns false when the turn ended.
func (c *Controller) respond(ctx context.Context, text string, transcribedAt time.Time) bool {
	c.logger.Infof("user: %s", text)
	if c.tlog != nil {
		c.tlog.Append(text)
	}
	c.session.AddUser(text)

	res, err := c.bridge.Respond(ctx, c.session.Compose(text))
	if err != nil {
		c.logger.Errorf("response failed: %v", err)
		c.machine.SetState(StateIdle)
		return false
	}

	if res.Intent != "" {
		c.session.NoteIntent(res.Intent)
	}
	if res.Text != "" {
		c.session.AddAssistant(res.Text)
		c.logger.Infof("assistant: %s", res.Text)
	}
	if c.observer != nil {
		c.observer.Exchange(text, res.Intent, res.Text)
	}
	if c.perf != nil && !res.FirstChunkAt.IsZero() {
		c.perf.Record("transcription_to_first_tts_chunk", res.FirstChunkAt.Sub(transcribedAt), map[string]any{
			"chunks": res.ChunksSpoken,
		})
	}

	c.event(ctx, "responded")
	return true
}

// event applies a transition; an illegal transition is a programmer error and
// is logged with the machine forced back to Idle rather than crashing.
func (c *Controller) event(ctx context.Context, name string) {
	if err := c.machine.Event(ctx, name); err != nil {
		c.logger.Errorf("invalid transition %q from %s: %v", name, c.machine.Current(), err)
		c.machine.SetState(StateIdle)
	}
}
