package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maquino1985/abseq/internal/selection"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got, want := settings.Port, 8080; got != want {
		t.Errorf("Wrong port: got %d, want %d", got, want)
	}
	if got, want := settings.SessionTTLMinutes, 30; got != want {
		t.Errorf("Wrong TTL: got %d, want %d", got, want)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abseq.yaml")
	data := `port: 9090
datasets: /srv/datasets
buckets:
  - team-antibodies
schemes:
  - name: lab
    colors:
      A: "#112233"
      C: "#445566"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got, want := settings.Port, 9090; got != want {
		t.Errorf("Wrong port: got %d, want %d", got, want)
	}
	if got, want := settings.Datasets, "/srv/datasets"; got != want {
		t.Errorf("Wrong datasets dir: got %q, want %q", got, want)
	}
	if len(settings.Buckets) != 1 || settings.Buckets[0] != "team-antibodies" {
		t.Errorf("Wrong buckets: got %v", settings.Buckets)
	}

	if err := settings.RegisterSchemes(); err != nil {
		t.Fatalf("RegisterSchemes() returned error: %v", err)
	}
	scheme, err := selection.SchemeByName("lab")
	if err != nil {
		t.Fatalf("SchemeByName() returned error: %v", err)
	}
	// Viper lowercases map keys on the way in; the registered scheme must
	// still be keyed by uppercase residue letters.
	if got, want := scheme.Colors['A'], "#112233"; got != want {
		t.Errorf("Wrong color: got %q, want %q", got, want)
	}
	if got, want := scheme.Colors['C'], "#445566"; got != want {
		t.Errorf("Wrong color: got %q, want %q", got, want)
	}
}

func TestRegisterSchemes_LowercaseKeys(t *testing.T) {
	settings := Settings{Schemes: []SchemeConfig{{
		Name:   "lower",
		Colors: map[string]string{"w": "#654321"},
	}}}
	if err := settings.RegisterSchemes(); err != nil {
		t.Fatalf("RegisterSchemes() returned error: %v", err)
	}
	scheme, err := selection.SchemeByName("lower")
	if err != nil {
		t.Fatalf("SchemeByName() returned error: %v", err)
	}
	if got, want := scheme.Colors['W'], "#654321"; got != want {
		t.Errorf("Wrong color: got %q, want %q", got, want)
	}
}

func TestRegisterSchemes_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		schemes []SchemeConfig
	}{
		{"empty name", []SchemeConfig{{Name: ""}}},
		{"multi letter key", []SchemeConfig{{Name: "x", Colors: map[string]string{"AB": "#000000"}}}},
		{"non letter key", []SchemeConfig{{Name: "x", Colors: map[string]string{"1": "#000000"}}}},
		{"empty key", []SchemeConfig{{Name: "x", Colors: map[string]string{"": "#000000"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := Settings{Schemes: tc.schemes}
			if err := settings.RegisterSchemes(); err == nil {
				t.Error("RegisterSchemes() accepted invalid scheme")
			}
		})
	}
}
