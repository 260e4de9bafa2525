// Package doctor runs runtime readiness diagnostics for config, audio, the
// speech service, and the interview backend.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"prepmate/internal/audio"
	"prepmate/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("no file at %q; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})
	for _, warning := range cfg.Warnings {
		checks = append(checks, Check{Name: "config.warning", Pass: true, Message: warning.Message})
	}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the session socket", "XDG_RUNTIME_DIR is empty; session control socket unavailable"))

	checks = append(checks, checkRecognizerKey(cfg.Config))
	checks = append(checks, checkQuestions(cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkBackendHealth(cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied
// predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkRecognizerKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.Recognizer.APIKey) == "" {
		return Check{
			Name:    "recognizer.api_key",
			Pass:    false,
			Message: "no API key; set recognizer.api_key or DEEPGRAM_API_KEY",
		}
	}
	return Check{Name: "recognizer.api_key", Pass: true, Message: "API key configured"}
}

func checkQuestions(cfg config.Config) Check {
	questions, err := config.LoadQuestions(cfg)
	if err != nil {
		return Check{Name: "questions", Pass: false, Message: err.Error()}
	}
	return Check{Name: "questions", Pass: true, Message: fmt.Sprintf("%d questions available", len(questions))}
}

// checkAudioSelection runs live device selection to surface selection and
// fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkBackendHealth probes the interview backend health endpoint.
func checkBackendHealth(cfg config.Config) Check {
	base := strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if base == "" {
		return Check{Name: "server.health", Pass: false, Message: "server.base_url is empty"}
	}

	url := base + "/health"
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return Check{Name: "server.health", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "server.health", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	return Check{Name: "server.health", Pass: true, Message: fmt.Sprintf("reachable at %s", url)}
}
