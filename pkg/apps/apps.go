// Package apps holds the built-in user programs of kernos.
//
// Every program talks to the kernel only through its ulib.Env, the same way
// a program linked against the user library would.
package apps

import (
	"errors"
	"fmt"
	"sort"

	"kernos/pkg/loader"
	"kernos/pkg/mm"
	"kernos/pkg/ulib"
)

// InitProc is the name of the init program.
const InitProc = "ch5b_initproc"

// Image layout shared by every program.
const (
	textBase mm.VirtAddr = 0x10000
	dataBase mm.VirtAddr = 0x11000
)

// ErrUnknownApp is returned for a name that is not a built-in program.
var ErrUnknownApp = errors.New("unknown app")

var programs = map[string]loader.Program{
	"yield":          yieldApp,
	"exit_code":      exitCodeApp,
	"mmap":           mmapApp,
	"mmap_overlap":   mmapOverlapApp,
	"munmap_partial": munmapPartialApp,
	"set_priority":   setPriorityApp,
	"page_fault":     pageFaultApp,
	"spawn_tree":     spawnTreeApp,
}

// Names returns the built-in programs other than init, sorted.
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register installs every built-in program into reg, plus an init program
// that spawns the named ones in order. A nil list means all of them.
func Register(reg *loader.Registry, names []string) error {
	if names == nil {
		names = Names()
	}
	for _, name := range names {
		if _, ok := programs[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, name)
		}
	}

	if err := reg.Register(image(InitProc, initProc(names))); err != nil {
		return fmt.Errorf("register %s: %w", InitProc, err)
	}
	for _, name := range Names() {
		if err := reg.Register(image(name, programs[name])); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// image gives a program a read-only text page holding its name and one
// zeroed data page.
func image(name string, prog loader.Program) *loader.Image {
	return &loader.Image{
		Name: name,
		Segments: []mm.Segment{
			{Start: textBase, MemSize: mm.PageSize, Data: []byte(name), Perm: mm.PermR | mm.PermX},
			{Start: dataBase, MemSize: mm.PageSize, Perm: mm.PermR | mm.PermW},
		},
		Program: prog,
	}
}

func initProc(names []string) loader.Program {
	return func(env *ulib.Env) int {
		for _, name := range names {
			if pid := env.Spawn(name); pid < 0 {
				env.Printf("[initproc] failed to spawn %s\n", name)
			}
		}
		for {
			pid, code := env.Wait()
			if pid < 0 {
				break
			}
			env.Printf("[initproc] released a zombie process, pid=%d, exit_code=%d\n", pid, code)
		}
		return 0
	}
}
