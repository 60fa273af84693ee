package main

import (
	"fmt"
	"regexp"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/nanobanana/pkg/appdir"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
)

const defaultKeyEnv = "GEMINI_API_KEY"

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// initAnswers collects what the init wizard asks for.
type initAnswers struct {
	KeyEnv   string
	Settings settings.Settings
}

func defaultInitAnswers() initAnswers {
	return initAnswers{KeyEnv: defaultKeyEnv, Settings: settings.Default()}
}

func runInit(dirPath string, skipWizard bool) error {
	answers := defaultInitAnswers()

	if !skipWizard {
		if err := runInitWizard(&answers); err != nil {
			return err
		}
	}

	data, err := initConfigYAML(answers)
	if err != nil {
		return err
	}

	d := appdir.New(dirPath)
	if err := appdir.Bootstrap(d, data); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", d.Root())
	fmt.Printf("Set %s (or put it in .env) before running nanobanana.\n", answers.KeyEnv)

	return nil
}

func runInitWizard(a *initAnswers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API key environment variable").
				Value(&a.KeyEnv).
				Validate(validateEnvName),
		),
		settingsGroup(&a.Settings),
	).Run()
}

// settingsGroup builds the form fields bound to s. It is shared by the init
// wizard and the in-app /settings form.
func settingsGroup(s *settings.Settings) *huh.Group {
	resOpts := make([]huh.Option[settings.Resolution], len(settings.Resolutions))
	for i, r := range settings.Resolutions {
		resOpts[i] = huh.NewOption(string(r), r)
	}

	aspectOpts := make([]huh.Option[settings.AspectRatio], len(settings.AspectRatios))
	for i, a := range settings.AspectRatios {
		aspectOpts[i] = huh.NewOption(string(a), a)
	}

	return huh.NewGroup(
		huh.NewSelect[settings.Resolution]().Title("Resolution").Options(resOpts...).Value(&s.Resolution),
		huh.NewSelect[settings.AspectRatio]().Title("Aspect ratio").Options(aspectOpts...).Value(&s.AspectRatio),
		huh.NewConfirm().Title("Ground answers with Google Search?").Value(&s.Grounding),
		huh.NewConfirm().Title("Show thoughts?").Value(&s.ShowThoughts),
		huh.NewConfirm().Title("Stream responses?").Value(&s.Streaming),
		huh.NewInput().Title("Model (empty = default)").Value(&s.Model),
	)
}

func validateEnvName(s string) error {
	if !envNameRe.MatchString(s) {
		return fmt.Errorf("%q is not a valid environment variable name", s)
	}
	return nil
}

// initConfigYAML renders the config written by init. The API key is kept as
// a ${VAR} reference so it is never stored on disk.
func initConfigYAML(a initAnswers) ([]byte, error) {
	if err := validateEnvName(a.KeyEnv); err != nil {
		return nil, err
	}

	cfg := engine.DefaultConfig()
	cfg.APIKey = "${" + a.KeyEnv + "}"
	cfg.Settings = a.Settings.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg.Marshal()
}
