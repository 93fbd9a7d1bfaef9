package apps

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kernos/pkg/loader"
	"kernos/pkg/task"
	"kernos/pkg/trap"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes map[string][]int
}

func (r *exitRecorder) TaskScheduled(*task.TaskControlBlock) {}
func (r *exitRecorder) TaskSuspended(*task.TaskControlBlock) {}

func (r *exitRecorder) TaskExited(t *task.TaskControlBlock, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[t.Name()] = append(r.codes[t.Name()], code)
}

func boot(t *testing.T, names []string) (*exitRecorder, string) {
	t.Helper()

	reg := loader.NewRegistry()
	if err := Register(reg, names); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	k, err := task.NewKernel(task.DefaultOptions(), reg)
	if err != nil {
		t.Fatalf("NewKernel() error = %v", err)
	}
	var out bytes.Buffer
	trap.Install(k, &out)
	rec := &exitRecorder{codes: make(map[string][]int)}
	k.AddListener(rec)

	if err := k.AddInitProc(); err != nil {
		t.Fatalf("AddInitProc() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := k.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if k.InitExitCode() != 0 {
		t.Errorf("InitExitCode() = %d, want 0", k.InitExitCode())
	}
	return rec, out.String()
}

// TestApps runs every built-in program under init.
func TestApps(t *testing.T) {
	tests := []struct {
		name     string
		wantCode int
		wantOut  string
	}{
		{"yield", 0, "yield pass."},
		{"exit_code", 42, "exit with code 42"},
		{"mmap", 0, "Test mmap OK!"},
		{"mmap_overlap", 0, "Test mmap overlap OK!"},
		{"munmap_partial", 0, "Test munmap partial OK!"},
		{"set_priority", 0, "Test set_priority OK!"},
		{"page_fault", -2, "store to an unmapped page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := boot(t, []string{tt.name})

			codes := rec.codes[tt.name]
			if len(codes) != 1 || codes[0] != tt.wantCode {
				t.Errorf("exit codes of %s = %v, want [%d]", tt.name, codes, tt.wantCode)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output = %q, want it to contain %q", out, tt.wantOut)
			}
			if !strings.Contains(out, "[initproc] released a zombie process") {
				t.Errorf("output = %q, want init to reap the child", out)
			}
		})
	}
}

// TestPageFaultKillsOnlyFaultingTask tests that a fault does not take
// siblings down.
func TestPageFaultKillsOnlyFaultingTask(t *testing.T) {
	rec, out := boot(t, []string{"page_fault", "yield", "exit_code"})

	if got := rec.codes["page_fault"]; len(got) != 1 || got[0] != trap.FaultExitCode {
		t.Errorf("exit codes of page_fault = %v, want [%d]", got, trap.FaultExitCode)
	}
	if got := rec.codes["yield"]; len(got) != 1 || got[0] != 0 {
		t.Errorf("exit codes of yield = %v, want [0]", got)
	}
	if strings.Contains(out, "page fault did not kill the process") {
		t.Error("faulting program kept running")
	}
}

// TestSpawnTree tests that orphans are reaped by init.
func TestSpawnTree(t *testing.T) {
	rec, out := boot(t, []string{"spawn_tree"})

	if got := rec.codes["yield"]; len(got) != 2 {
		t.Errorf("exit codes of yield = %v, want two exits", got)
	}
	if n := strings.Count(out, "[initproc] released a zombie process"); n != 3 {
		t.Errorf("init reaped %d processes, want 3", n)
	}
}

// TestAllApps runs the default configuration.
func TestAllApps(t *testing.T) {
	rec, _ := boot(t, nil)

	for _, name := range Names() {
		if len(rec.codes[name]) == 0 {
			t.Errorf("%s never exited", name)
		}
	}
	if got := rec.codes[InitProc]; len(got) != 1 || got[0] != 0 {
		t.Errorf("exit codes of init = %v, want [0]", got)
	}
}

// TestRegisterUnknown tests name validation.
func TestRegisterUnknown(t *testing.T) {
	reg := loader.NewRegistry()
	if err := Register(reg, []string{"nope"}); !errors.Is(err, ErrUnknownApp) {
		t.Errorf("Register() error = %v, want %v", err, ErrUnknownApp)
	}
	if got := reg.ListApps(); len(got) != 0 {
		t.Errorf("ListApps() = %v, want empty after a failed Register()", got)
	}

	if err := Register(reg, nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register(reg, nil); !errors.Is(err, loader.ErrAppExists) {
		t.Errorf("second Register() error = %v, want %v", err, loader.ErrAppExists)
	}
}
