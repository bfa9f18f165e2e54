package hypervisor

import "sync"

// StateResult is one scripted answer for Fake.State.
type StateResult struct {
	State State
	Err   error
}

// Fake is an in-memory Controller for tests. Zero value reports a
// running domain. Script successive State answers through StateSeq;
// once the script is exhausted, CurrentState answers.
type Fake struct {
	mu sync.Mutex

	CurrentState State
	StateErr     error
	StateSeq     []StateResult

	InfoValue Info
	InfoErr   error

	StartErr    error
	ShutdownErr error
	DestroyErr  error

	// AgentFunc handles AgentCommand calls. Nil means every command
	// fails, which mimics a guest without an agent.
	AgentFunc func(cmd string, timeoutSeconds int) (string, error)

	StateCalls    int
	InfoCalls     int
	StartCalls    int
	ShutdownCalls int
	DestroyCalls  int
	AgentCalls    []string
}

func (f *Fake) State() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StateCalls++
	if len(f.StateSeq) > 0 {
		next := f.StateSeq[0]
		f.StateSeq = f.StateSeq[1:]
		return next.State, next.Err
	}
	if f.StateErr != nil {
		return StateOther, f.StateErr
	}
	if f.CurrentState == "" {
		return StateRunning, nil
	}
	return f.CurrentState, nil
}

func (f *Fake) Info() (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.InfoCalls++
	if f.InfoErr != nil {
		return Info{State: StateOther}, f.InfoErr
	}
	return f.InfoValue, nil
}

func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StartCalls++
	return f.StartErr
}

func (f *Fake) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ShutdownCalls++
	return f.ShutdownErr
}

func (f *Fake) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DestroyCalls++
	return f.DestroyErr
}

func (f *Fake) AgentCommand(cmd string, timeoutSeconds int) (string, error) {
	f.mu.Lock()
	fn := f.AgentFunc
	f.AgentCalls = append(f.AgentCalls, cmd)
	f.mu.Unlock()

	if fn == nil {
		return "", ErrNoAgent
	}
	return fn(cmd, timeoutSeconds)
}

func (f *Fake) Close() error { return nil }

// SetState changes the fallback state answer.
func (f *Fake) SetState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentState = s
}
