package loader

import (
	"errors"
	"reflect"
	"testing"

	"kernos/pkg/ulib"
)

func nop(env *ulib.Env) int { return 0 }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"yield", "initproc", "mmap"} {
		if err := r.Register(&Image{Name: name, Program: nop}); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	if err := r.Register(&Image{Name: "yield", Program: nop}); !errors.Is(err, ErrAppExists) {
		t.Errorf("Register() duplicate error = %v, want %v", err, ErrAppExists)
	}

	img, ok := r.GetAppDataByName("mmap")
	if !ok || img.Name != "mmap" {
		t.Errorf("GetAppDataByName(mmap) = %v, %v", img, ok)
	}
	if _, ok := r.GetAppDataByName("missing"); ok {
		t.Error("GetAppDataByName(missing) found an image")
	}

	want := []string{"initproc", "mmap", "yield"}
	if got := r.ListApps(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListApps() = %v, want %v", got, want)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		img  *Image
	}{
		{"nil", nil},
		{"no name", &Image{Program: nop}},
		{"no program", &Image{Name: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.img); !errors.Is(err, ErrInvalidApp) {
				t.Errorf("Register() error = %v, want %v", err, ErrInvalidApp)
			}
		})
	}
}
