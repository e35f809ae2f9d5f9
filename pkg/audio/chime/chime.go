package chime

import (
	"os"
	"os/exec"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Player plays short notification sounds through the system mixer. Playback
// is fire-and-forget: a missing file or a failed player is logged and
// swallowed.
type Player struct {
	path   string
	logger *Logger.Logger
}

func New(path string, logger *Logger.Logger) *Player {
	return &Player{path: path, logger: logger}
}

// Play starts playback in the background, trying paplay then aplay.
func (p *Player) Play() {
	if _, err := os.Stat(p.path); err != nil {
		p.logger.Debugf("chime missing: %s", p.path)
		return
	}
	go func() {
		for _, player := range [][]string{
			{"paplay", p.path},
			{"aplay", "-q", p.path},
		} {
			cmd := exec.Command(player[0], player[1:]...)
			if err := cmd.Start(); err != nil {
				continue
			}
			done := make(chan error, 1)
			go func() { done <- cmd.Wait() }()
			select {
			case err := <-done:
				if err == nil {
					return
				}
			case <-time.After(2 * time.Second):
				cmd.Process.Kill()
				<-done
			}
		}
		p.logger.Debugf("all chime players failed for %s", p.path)
	}()
}
