package statemachine

import (
	"errors"
	"testing"
)

func TestProjectStateMachineHappyPath(t *testing.T) {
	sm := NewProjectStateMachine()

	path := []ProjectStatus{
		ProjectStatusPending,
		ProjectStatusExtracting,
		ProjectStatusGenerating,
		ProjectStatusMutating,
		ProjectStatusCompiling,
		ProjectStatusVerified,
	}

	for i := 0; i < len(path)-1; i++ {
		if !sm.CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestProjectStateMachineRepairCycle(t *testing.T) {
	sm := NewProjectStateMachine()

	// 修复循环：compiling -> repairing -> mutating -> compiling
	cycle := []ProjectTransition{
		{ProjectStatusCompiling, ProjectStatusRepairing},
		{ProjectStatusRepairing, ProjectStatusMutating},
		{ProjectStatusMutating, ProjectStatusCompiling},
		{ProjectStatusRepairing, ProjectStatusCompiling},
	}
	for _, tr := range cycle {
		if !sm.CanTransition(tr.From, tr.To) {
			t.Fatalf("expected %s -> %s to be allowed", tr.From, tr.To)
		}
	}
}

func TestProjectStateMachineRejectsInvalid(t *testing.T) {
	sm := NewProjectStateMachine()

	tests := []struct {
		from ProjectStatus
		to   ProjectStatus
	}{
		{ProjectStatusPending, ProjectStatusCompiling},   // 跳过中间步骤
		{ProjectStatusVerified, ProjectStatusRepairing},  // 终止态不进入修复
		{ProjectStatusFailed, ProjectStatusCompiling},    // failed 只能 reset
		{ProjectStatusCompiling, ProjectStatusExtracting}, // 不允许回退
		{ProjectStatusCompiling, ProjectStatusCompiling}, // 状态不变
		{ProjectStatusPending, ProjectStatusFailed},      // 未开始不能失败
	}

	for _, tt := range tests {
		if sm.CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be rejected", tt.from, tt.to)
		}
	}
}

func TestProjectStateMachineReentry(t *testing.T) {
	sm := NewProjectStateMachine()

	if !sm.CanTransition(ProjectStatusVerified, ProjectStatusCompiling) {
		t.Fatalf("expected verified -> compiling to be allowed")
	}
	if !sm.CanTransition(ProjectStatusFailed, ProjectStatusPending) {
		t.Fatalf("expected failed -> pending to be allowed")
	}
	if !sm.CanTransition(ProjectStatusVerified, ProjectStatusPending) {
		t.Fatalf("expected verified -> pending to be allowed")
	}
}

func TestValidateTransitionError(t *testing.T) {
	sm := NewProjectStateMachine()

	err := sm.ValidateTransition(ProjectStatusPending, ProjectStatusVerified)
	if err == nil {
		t.Fatalf("expected error")
	}

	var transErr *InvalidStateTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %T", err)
	}
	if transErr.From != "pending" || transErr.To != "verified" {
		t.Fatalf("unexpected error content: %+v", transErr)
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(ProjectStatusVerified) || !IsTerminal(ProjectStatusFailed) {
		t.Fatalf("expected verified/failed to be terminal")
	}
	if IsTerminal(ProjectStatusCompiling) || IsTerminal(ProjectStatusPending) {
		t.Fatalf("expected compiling/pending to be non-terminal")
	}
}

func TestIsRunning(t *testing.T) {
	running := []ProjectStatus{
		ProjectStatusExtracting, ProjectStatusGenerating,
		ProjectStatusMutating, ProjectStatusCompiling, ProjectStatusRepairing,
	}
	for _, s := range running {
		if !IsRunning(s) {
			t.Errorf("expected %s to be running", s)
		}
	}
	for _, s := range []ProjectStatus{ProjectStatusPending, ProjectStatusVerified, ProjectStatusFailed} {
		if IsRunning(s) {
			t.Errorf("expected %s to not be running", s)
		}
	}
}
