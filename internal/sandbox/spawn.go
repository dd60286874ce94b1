package sandbox

import (
	"log/slog"
	"os/exec"
)

// Spawner starts a planned process without waiting for it.
type Spawner interface {
	Spawn(p *Plan) (int, error)
}

type execSpawner struct{ log *slog.Logger }

// NewExecSpawner starts detached children with stdio on the null device and
// reaps them in the background.
func NewExecSpawner(logger *slog.Logger) Spawner { return &execSpawner{log: logger} }

func (s *execSpawner) Spawn(p *Plan) (int, error) {
	cmd := exec.Command(p.Program, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	cmd.SysProcAttr = detachAttr()
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		s.log.Debug("process exited", "game_id", p.GameID, "pid", pid, "error", err)
	}()
	return pid, nil
}
