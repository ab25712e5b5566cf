package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// ModelParams overrides generation parameters from a persona file
type ModelParams struct {
	Model       string   `toml:"model"`
	Temperature *float64 `toml:"temperature"`
	MaxTokens   *int     `toml:"max_tokens"`
}

// Validate checks that the parameters are in range
func (m *ModelParams) Validate() error {
	if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
		return goerr.Wrap(ErrInvalidConfig, "temperature must be within [0, 2]", goerr.V("temperature", *m.Temperature))
	}
	if m.MaxTokens != nil && *m.MaxTokens <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "max_tokens must be positive", goerr.V(MaxTokensKey, *m.MaxTokens))
	}
	return nil
}

// PersonaFile is the TOML document given by --persona-file
//
//	persona = "You are a concise assistant."
//	assistant_name = "Recall"
//	user_id = "alice"
//
//	[model]
//	model = "gemini-1.5-pro"
//	temperature = 0.2
//	max_tokens = 1024
type PersonaFile struct {
	Persona       string       `toml:"persona"`
	AssistantName string       `toml:"assistant_name"`
	UserID        string       `toml:"user_id"`
	Model         *ModelParams `toml:"model"`
}

// LoadPersonaFile reads and validates a persona file
func LoadPersonaFile(path string) (*PersonaFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "persona file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read persona file", goerr.V(ConfigPathKey, path))
	}

	var file PersonaFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "failed to parse persona file", goerr.V(ConfigPathKey, path))
	}

	if file.Model != nil {
		if err := file.Model.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid model section", goerr.V(ConfigPathKey, path))
		}
	}
	return &file, nil
}

// Profile is the resolved identity and persona of a conversation
type Profile struct {
	Persona       string
	AssistantName string
	UserID        model.UserID
	Model         *ModelParams
}

const (
	flagPersona       = "persona"
	flagAssistantName = "assistant-name"
	flagUserID        = "user-id"
)

// FlagSet reports whether a flag was given explicitly on the command line or
// through its environment variable. *cli.Command satisfies it.
type FlagSet interface {
	IsSet(name string) bool
}

func isSet(set FlagSet, name string) bool {
	return set != nil && set.IsSet(name)
}

// Persona holds flags selecting the persona, the assistant name and the user
// identity. Values in the persona file take precedence over flag defaults but
// not over flags set explicitly.
type Persona struct {
	path          string
	persona       string
	assistantName string
	userID        string
}

func (p *Persona) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona-file",
			Usage:       "TOML file defining persona, assistant name, user ID and model parameters",
			Category:    "Persona",
			Sources:     cli.EnvVars("RECALL_PERSONA_FILE"),
			Destination: &p.path,
		},
		&cli.StringFlag{
			Name:        flagPersona,
			Usage:       "Base system instruction",
			Category:    "Persona",
			Value:       usecase.DefaultPersona,
			Sources:     cli.EnvVars("RECALL_PERSONA"),
			Destination: &p.persona,
		},
		&cli.StringFlag{
			Name:        flagAssistantName,
			Usage:       "Name shown for assistant replies",
			Category:    "Persona",
			Value:       usecase.DefaultAssistantName,
			Sources:     cli.EnvVars("RECALL_ASSISTANT_NAME"),
			Destination: &p.assistantName,
		},
		&cli.StringFlag{
			Name:        flagUserID,
			Usage:       "Identity scoping memory retrieval and write-back",
			Category:    "Persona",
			Value:       model.DefaultUserID.String(),
			Sources:     cli.EnvVars("RECALL_USER_ID"),
			Destination: &p.userID,
		},
	}
}

func (p *Persona) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("persona_file", p.path),
		slog.String("assistant_name", p.assistantName),
		slog.String("user_id", p.userID),
	}
}

// Configure resolves the profile from flags and the optional persona file
func (p *Persona) Configure(set FlagSet) (*Profile, error) {
	profile := &Profile{
		Persona:       p.persona,
		AssistantName: p.assistantName,
		UserID:        model.UserID(p.userID),
	}

	if p.path != "" {
		file, err := LoadPersonaFile(p.path)
		if err != nil {
			return nil, err
		}
		if file.Persona != "" && !isSet(set, flagPersona) {
			profile.Persona = file.Persona
		}
		if file.AssistantName != "" && !isSet(set, flagAssistantName) {
			profile.AssistantName = file.AssistantName
		}
		if file.UserID != "" && !isSet(set, flagUserID) {
			profile.UserID = model.UserID(file.UserID)
		}
		profile.Model = file.Model
	}

	if strings.TrimSpace(profile.Persona) == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "persona must not be empty", goerr.V(ConfigPathKey, p.path))
	}
	if err := profile.UserID.Validate(); err != nil {
		return nil, goerr.Wrap(errors.Join(ErrInvalidConfig, err), "invalid user ID")
	}
	if profile.AssistantName == "" {
		profile.AssistantName = usecase.DefaultAssistantName
	}

	return profile, nil
}
