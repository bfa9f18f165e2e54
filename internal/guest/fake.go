package guest

import (
	"context"
	"sync"
)

// Fake is an in-memory Channel for tests. ExecFunc decides command
// outcomes; a nil ExecFunc fails every command.
type Fake struct {
	mu sync.Mutex

	PingErr  error
	ExecFunc func(ctx context.Context, command string) (ExecResult, error)

	PingCalls int
	ExecCalls []string
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PingCalls++
	return f.PingErr
}

func (f *Fake) Exec(ctx context.Context, command string) (ExecResult, error) {
	f.mu.Lock()
	f.ExecCalls = append(f.ExecCalls, command)
	fn := f.ExecFunc
	f.mu.Unlock()

	if fn == nil {
		return ExecResult{}, context.DeadlineExceeded
	}
	return fn(ctx, command)
}

// Commands returns a copy of the executed command list.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ExecCalls))
	copy(out, f.ExecCalls)
	return out
}
