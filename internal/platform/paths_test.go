package platform

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPathsFor(t *testing.T) {
	cases := []struct {
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
			wantConfig: filepath.Join("/xdg/config", "pitchside", "config.toml"),
			wantDB:     filepath.Join("/xdg/data", "pitchside", "pitchside.db"),
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			env:        map[string]string{},
			config:     "/home/me/.config",
			data:       "/home/me/.local/share",
			wantConfig: filepath.Join("/home/me/.config", "pitchside", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "pitchside", "pitchside.db"),
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			config:     `C:\fallback\config`,
			data:       `C:\fallback\data`,
			wantConfig: filepath.Join(`C:\Roaming`, "pitchside", "config.toml"),
			wantDB:     filepath.Join(`C:\Local`, "pitchside", "pitchside.db"),
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored"},
			config:     "/Users/me/Library/Application Support",
			data:       "/Users/me/Library/Application Support",
			wantConfig: filepath.Join("/Users/me/Library/Application Support", "pitchside", "config.toml"),
			wantDB:     filepath.Join("/Users/me/Library/Application Support", "pitchside", "pitchside.db"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.config, tc.data, AppName)
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("unexpected config path %q", p.ConfigPath)
			}
			if p.DBPath != tc.wantDB {
				t.Fatalf("unexpected db path %q", p.DBPath)
			}
			if p.LogDir != filepath.Join(p.DataDir, "log") {
				t.Fatalf("unexpected log dir %q", p.LogDir)
			}
		})
	}
}

func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", AppName); !errors.Is(err, errEmptyBaseDirs) {
		t.Fatalf("expected errEmptyBaseDirs, got %v", err)
	}
	if _, err := PathsFor("linux", nil, "/a", "/b", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "pitchside-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "pitchside-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}
