package platform

import (
	"path/filepath"
	"testing"
)

// TestPathsFor verifies per-platform layouts.
func TestPathsFor(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		env        map[string]string
		config     string
		data       string
		wantConfig string
		wantDB     string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			config:     "/fallback/config",
			data:       "/fallback/data",
			wantConfig: filepath.Join("/xdg/config", "tally", "config.toml"),
			wantDB:     filepath.Join("/xdg/data", "tally", "tally.db"),
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			env:        map[string]string{},
			config:     "/home/me/.config",
			data:       "/home/me/.local/share",
			wantConfig: filepath.Join("/home/me/.config", "tally", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "tally", "tally.db"),
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Users\me\AppData\Roaming`, "LOCALAPPDATA": `C:\Users\me\AppData\Local`},
			config:     `C:\fallback\config`,
			data:       `C:\fallback\data`,
			wantConfig: filepath.Join(`C:\Users\me\AppData\Roaming`, "tally", "config.toml"),
			wantDB:     filepath.Join(`C:\Users\me\AppData\Local`, "tally", "tally.db"),
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config"},
			config:     "/Users/me/Library/Application Support",
			data:       "/Users/me/Library/Application Support",
			wantConfig: filepath.Join("/Users/me/Library/Application Support", "tally", "config.toml"),
			wantDB:     filepath.Join("/Users/me/Library/Application Support", "tally", "tally.db"),
		},
		{
			name:       "unknown fallback",
			goos:       "freebsd",
			env:        map[string]string{},
			config:     "/cfg",
			data:       "/data",
			wantConfig: filepath.Join("/cfg", "tally", "config.toml"),
			wantDB:     filepath.Join("/data", "tally", "tally.db"),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.config, tc.data, "tally")
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("unexpected config path %q", p.ConfigPath)
			}
			if p.DBPath != tc.wantDB {
				t.Fatalf("unexpected db path %q", p.DBPath)
			}
			if p.ReportsDir != filepath.Join(p.DataDir, "reports") || p.LogDir != filepath.Join(p.DataDir, "logs") {
				t.Fatalf("unexpected derived dirs %#v", p)
			}
		})
	}
}

// TestPathsForRejectsEmptyInputs verifies argument validation.
func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("linux", nil, "", "/data", "tally"); err == nil {
		t.Fatal("expected error for empty config dir")
	}
	if _, err := PathsFor("linux", nil, "/cfg", "/data", " "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

// TestDefaultPathsWithOptionsDevMode verifies the dev suffix.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "tally-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "tally-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}
