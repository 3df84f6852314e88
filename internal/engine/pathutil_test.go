package engine

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveWithin(t *testing.T) {
	root := filepath.FromSlash("/data/out")
	cwd := filepath.FromSlash("/data/out/p1u_circuit_1_ev")

	tests := []struct {
		name    string
		path    string
		cwd     string
		want    string
		wantErr bool
	}{
		{name: "bare instance name", path: "p1u_circuit_1_ev", cwd: "/elsewhere", want: "/data/out/p1u_circuit_1_ev"},
		{name: "absolute inside", path: "/data/out/p1u_circuit_2_ev", want: "/data/out/p1u_circuit_2_ev"},
		{name: "relative sibling", path: "../p1u_circuit_3_ev", cwd: cwd, want: "/data/out/p1u_circuit_3_ev"},
		{name: "dot resolves to cwd", path: ".", cwd: cwd, want: "/data/out/p1u_circuit_1_ev"},
		{name: "absolute outside", path: "/tmp/x", wantErr: true},
		{name: "escape via dotdot", path: "../../etc", cwd: cwd, wantErr: true},
		{name: "output dir itself", path: "/data/out", wantErr: true},
		{name: "dotdot from root cwd", path: "..", cwd: root, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveWithin(filepath.FromSlash(tt.path), filepath.FromSlash(tt.cwd), root)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveWithin(%q) = %q, want error", tt.path, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v is not ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveWithin(%q) failed: %v", tt.path, err)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("resolveWithin(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
