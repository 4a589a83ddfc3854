package bridge

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var crashedPrefsReplacer = strings.NewReplacer(
	`"exit_type":"Crashed"`, `"exit_type":"Normal"`,
	`"exit_type": "Crashed"`, `"exit_type": "Normal"`,
	`"exited_cleanly":false`, `"exited_cleanly":true`,
	`"exited_cleanly": false`, `"exited_cleanly": true`,
)

var singletonFiles = []string{"SingletonLock", "SingletonSocket", "SingletonCookie"}

// PrepareProfile readies a Chrome user data dir for launch: it creates the
// dir, drops stale singleton locks and clears session restore data after
// a crash so Chrome does not reopen the tabs it died with.
func PrepareProfile(profileDir string) error {
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return err
	}
	for _, name := range singletonFiles {
		if err := os.Remove(filepath.Join(profileDir, name)); err == nil {
			slog.Warn("removed stale lock", "file", name)
		}
	}
	if WasUncleanExit(profileDir) {
		slog.Warn("previous session exited uncleanly, clearing Chrome session restore data")
		ClearChromeSessions(profileDir)
	}
	MarkCleanExit(profileDir)
	return nil
}

func MarkCleanExit(profileDir string) {
	prefsPath := filepath.Join(profileDir, "Default", "Preferences")
	data, err := os.ReadFile(prefsPath)
	if err != nil {
		return
	}
	patched := crashedPrefsReplacer.Replace(string(data))
	if patched != string(data) {
		if err := os.WriteFile(prefsPath, []byte(patched), 0644); err != nil {
			slog.Error("patch prefs", "err", err)
		}
	}
}

func WasUncleanExit(profileDir string) bool {
	prefsPath := filepath.Join(profileDir, "Default", "Preferences")
	data, err := os.ReadFile(prefsPath)
	if err != nil {
		return false
	}
	prefs := string(data)
	return strings.Contains(prefs, `"exit_type":"Crashed"`) || strings.Contains(prefs, `"exit_type": "Crashed"`)
}

func ClearChromeSessions(profileDir string) {
	sessionsDir := filepath.Join(profileDir, "Default", "Sessions")

	// File locks can outlive the Chrome process on Windows.
	const maxRetries = 3
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		if err = os.RemoveAll(sessionsDir); err == nil {
			slog.Info("cleared Chrome sessions dir")
			return
		}
		slog.Debug("clear Chrome sessions dir", "attempt", attempt+1, "err", err)
	}
	slog.Warn("failed to clear Chrome sessions dir after retries", "err", err)
}
