package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/cmd/cli/internal/credentials"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// ConnectionFlags select the server and API key, falling back to a stored profile.
type ConnectionFlags struct {
	Profile   string `help:"Profile to use (default: the default profile)" short:"p" env:"VIDEOINSIGHT_PROFILE"`
	Server    string `help:"Server URL, overrides the profile" env:"VIDEOINSIGHT_SERVER_URL"`
	APIKey    string `help:"API key, overrides the profile" env:"VIDEOINSIGHT_API_KEY"`
	ConfigDir string `help:"Custom config directory (default: ~/.videoinsight/)"`
}

func (f *ConnectionFlags) newClient(timeout time.Duration) (*client.Client, error) {
	cfg := client.DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	if f.Server == "" || f.APIKey == "" {
		store, err := credentials.NewStore(f.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize profile store: %w", err)
		}

		profile, err := store.Resolve(f.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w\n\nRun 'videoinsight init <name> --server <url> --api-key <key>' first", err)
		}
		cfg.ServerURL = profile.ServerURL
		cfg.APIKey = profile.APIKey
	}

	if f.Server != "" {
		cfg.ServerURL = f.Server
	}
	if f.APIKey != "" {
		cfg.APIKey = f.APIKey
	}

	return client.New(cfg, nil)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
