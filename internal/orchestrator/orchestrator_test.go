package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/guest"
	"doze/internal/hypervisor"
	"doze/internal/logging"
	"doze/internal/statestore"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Workload.Name = "workstation"
	cfg.Hibernate.ProbeTimeoutSeconds = 1
	cfg.Hibernate.PollIntervalSeconds = 5
	cfg.Hibernate.TimeoutSeconds = 30
	cfg.Hibernate.StoppedConfirmations = 2
	cfg.Hibernate.ShutdownTimeoutSeconds = 10
	cfg.Sleep.ResumeRaceWindowSeconds = 10
	cfg.Sleep.StabilizeDelaySeconds = 2
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg config.Config, ctrl *hypervisor.Fake, ch *guest.Fake) (*Orchestrator, statestore.Store) {
	t.Helper()
	logger := logging.NewLogger(logging.LevelError)
	store, err := statestore.NewFileStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	clk := clock.Fake(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	return New(cfg, ctrl, ch, store, clk, logger), store
}

func hibernateOK(ctx context.Context, command string) (guest.ExecResult, error) {
	return guest.ExecResult{ExitCode: 0}, nil
}

func takeIntent(t *testing.T, store statestore.Store) statestore.HibernationIntent {
	t.Helper()
	intent, found, err := store.TakeHibernationIntent()
	if err != nil {
		t.Fatalf("TakeHibernationIntent() error = %v", err)
	}
	if !found {
		t.Fatal("no hibernation intent recorded")
	}
	return intent
}

func TestPreSleepHibernatesCooperativeGuest(t *testing.T) {
	ctrl := &hypervisor.Fake{StateSeq: []hypervisor.StateResult{
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateStopped},
		{State: hypervisor.StateStopped},
	}}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeHibernated {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeHibernated)
	}
	if intent.TransitionID == "" {
		t.Error("TransitionID is empty")
	}
	commands := ch.Commands()
	if len(commands) != 1 || commands[0] != "systemctl hibernate" {
		t.Errorf("Commands() = %v, want one hibernate command", commands)
	}
	if ch.PingCalls != 1 {
		t.Errorf("PingCalls = %d, want 1", ch.PingCalls)
	}
}

func TestPreSleepIgnoresStoppedFlicker(t *testing.T) {
	// One stopped reading followed by running again is a reboot in
	// flight, not a completed hibernation.
	ctrl := &hypervisor.Fake{StateSeq: []hypervisor.StateResult{
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateStopped},
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateStopped},
		{State: hypervisor.StateStopped},
	}}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeHibernated {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeHibernated)
	}
	// Initial check plus four polls: the flicker forced a second
	// stopped streak before confirmation.
	if ctrl.StateCalls != 5 {
		t.Errorf("StateCalls = %d, want 5", ctrl.StateCalls)
	}
}

func TestPreSleepTimeoutFallsBackToShutdown(t *testing.T) {
	// Never stops during the hibernation wait, stops right after the
	// graceful shutdown request.
	seq := []hypervisor.StateResult{{State: hypervisor.StateRunning}}
	for i := 0; i < 6; i++ {
		seq = append(seq, hypervisor.StateResult{State: hypervisor.StateRunning})
	}
	seq = append(seq, hypervisor.StateResult{State: hypervisor.StateStopped})
	ctrl := &hypervisor.Fake{StateSeq: seq}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeWasShutDown {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeWasShutDown)
	}
	if ctrl.ShutdownCalls != 1 {
		t.Errorf("ShutdownCalls = %d, want 1", ctrl.ShutdownCalls)
	}
	if ctrl.DestroyCalls != 0 {
		t.Errorf("DestroyCalls = %d, want 0", ctrl.DestroyCalls)
	}
}

func TestPreSleepDestroysUnresponsiveGuest(t *testing.T) {
	// Running forever: hibernate times out, shutdown times out,
	// destroy is the only thing left before the host suspends.
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateRunning}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeWasShutDown {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeWasShutDown)
	}
	if ctrl.ShutdownCalls != 1 {
		t.Errorf("ShutdownCalls = %d, want 1", ctrl.ShutdownCalls)
	}
	if ctrl.DestroyCalls != 1 {
		t.Errorf("DestroyCalls = %d, want 1", ctrl.DestroyCalls)
	}
}

func TestPreSleepSkipsStoppedGuest(t *testing.T) {
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateStopped}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeNotRunning {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeNotRunning)
	}
	if got := ch.Commands(); len(got) != 0 {
		t.Errorf("Commands() = %v, want none for a stopped guest", got)
	}
	if ch.PingCalls != 0 {
		t.Errorf("PingCalls = %d, want 0", ch.PingCalls)
	}
}

func TestPreSleepProceedsOnDegradedChannel(t *testing.T) {
	ctrl := &hypervisor.Fake{StateSeq: []hypervisor.StateResult{
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateStopped},
		{State: hypervisor.StateStopped},
	}}
	ch := &guest.Fake{
		PingErr:  errors.New("agent not connected"),
		ExecFunc: hibernateOK,
	}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	if got := ch.Commands(); len(got) != 1 {
		t.Fatalf("Commands() = %v, want the hibernate attempt despite probe failure", got)
	}
	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomeHibernated {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomeHibernated)
	}
}

func TestPreSleepHibernateDisabledRecordsNoIntent(t *testing.T) {
	cfg := testConfig()
	cfg.Hibernate.Enabled = false
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateRunning}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, cfg, ctrl, ch)

	if err := orch.PreSleep(context.Background()); err != nil {
		t.Fatalf("PreSleep() error = %v", err)
	}

	if _, found, _ := store.TakeHibernationIntent(); found {
		t.Error("intent recorded although hibernation is disabled")
	}
	if got := ch.Commands(); len(got) != 0 {
		t.Errorf("Commands() = %v, want none", got)
	}
}

func TestPreSleepUnreachableHypervisorLeavesPendingIntent(t *testing.T) {
	ctrl := &hypervisor.Fake{StateErr: errors.New("connection refused")}
	ch := &guest.Fake{ExecFunc: hibernateOK}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	err := orch.PreSleep(context.Background())
	if err == nil {
		t.Fatal("PreSleep() error = nil, want state query failure")
	}
	if !strings.Contains(err.Error(), "query domain state") {
		t.Errorf("error = %v, want state query failure", err)
	}

	intent := takeIntent(t, store)
	if intent.Outcome != statestore.OutcomePending {
		t.Errorf("Outcome = %v, want %v", intent.Outcome, statestore.OutcomePending)
	}
}

func TestPostWakeStartsHibernatedGuest(t *testing.T) {
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateStopped}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeHibernated,
		TransitionID: "t-100",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v", err)
	}

	if ctrl.StartCalls != 1 {
		t.Errorf("StartCalls = %d, want 1", ctrl.StartCalls)
	}
	record, found, err := store.LoadWakeRecord()
	if err != nil || !found {
		t.Fatalf("LoadWakeRecord() = %v, %v, %v, want a record", record, found, err)
	}
	if record.TransitionID != "t-100" {
		t.Errorf("TransitionID = %v, want t-100", record.TransitionID)
	}
	if _, found, _ := store.TakeHibernationIntent(); found {
		t.Error("intent still present after PostWake consumed it")
	}
}

func TestPostWakeWithoutIntentStillRecordsWake(t *testing.T) {
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateStopped}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v", err)
	}

	if ctrl.StartCalls != 0 {
		t.Errorf("StartCalls = %d, want 0 without an intent", ctrl.StartCalls)
	}
	record, found, err := store.LoadWakeRecord()
	if err != nil || !found {
		t.Fatalf("LoadWakeRecord() = %v, %v, %v, want a record", record, found, err)
	}
	if record.TransitionID == "" {
		t.Error("TransitionID is empty")
	}
}

func TestPostWakeLeavesPreviouslyStoppedGuestAlone(t *testing.T) {
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateStopped}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeNotRunning,
		TransitionID: "t-101",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v", err)
	}

	if ctrl.StartCalls != 0 {
		t.Errorf("StartCalls = %d, want 0", ctrl.StartCalls)
	}
	if _, found, _ := store.LoadWakeRecord(); !found {
		t.Error("wake record missing")
	}
}

func TestPostWakeWaitsOutResumeRace(t *testing.T) {
	// Hibernation lost the race against host suspend: the guest
	// resumes still running, finishes writing its image, then stops
	// and wants a normal start.
	ctrl := &hypervisor.Fake{StateSeq: []hypervisor.StateResult{
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateRunning},
		{State: hypervisor.StateStopped},
	}}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeHibernated,
		TransitionID: "t-102",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v", err)
	}

	if ctrl.StartCalls != 1 {
		t.Errorf("StartCalls = %d, want 1", ctrl.StartCalls)
	}
}

func TestPostWakeLeavesUsableGuestRunning(t *testing.T) {
	ctrl := &hypervisor.Fake{CurrentState: hypervisor.StateRunning}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeHibernated,
		TransitionID: "t-103",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v", err)
	}

	if ctrl.StartCalls != 0 {
		t.Errorf("StartCalls = %d, want 0 for a guest that stayed up", ctrl.StartCalls)
	}
	if _, found, _ := store.LoadWakeRecord(); !found {
		t.Error("wake record missing")
	}
}

func TestPostWakeStartLosesRaceGracefully(t *testing.T) {
	ctrl := &hypervisor.Fake{
		StartErr: errors.New("domain is already active"),
		StateSeq: []hypervisor.StateResult{
			{State: hypervisor.StateStopped},
			{State: hypervisor.StateRunning},
		},
	}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeWasShutDown,
		TransitionID: "t-104",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	if err := orch.PostWake(context.Background()); err != nil {
		t.Fatalf("PostWake() error = %v, want nil when the guest is up anyway", err)
	}
}

func TestPostWakeReportsStartFailure(t *testing.T) {
	ctrl := &hypervisor.Fake{
		CurrentState: hypervisor.StateStopped,
		StartErr:     errors.New("cannot allocate passthrough device"),
	}
	ch := &guest.Fake{}
	orch, store := newTestOrchestrator(t, testConfig(), ctrl, ch)
	if err := store.SaveHibernationIntent(statestore.HibernationIntent{
		Outcome:      statestore.OutcomeHibernated,
		TransitionID: "t-105",
	}); err != nil {
		t.Fatalf("SaveHibernationIntent() error = %v", err)
	}

	err := orch.PostWake(context.Background())
	if err == nil {
		t.Fatal("PostWake() error = nil, want start failure")
	}
	if !strings.Contains(err.Error(), "start domain") {
		t.Errorf("error = %v, want start failure", err)
	}
	// The wake record must be written even when the restore failed.
	if _, found, _ := store.LoadWakeRecord(); !found {
		t.Error("wake record missing after failed start")
	}
}
