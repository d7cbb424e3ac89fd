package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/cmd/cli/internal/credentials"
)

// InitCmd stores a server URL and API key as a named profile.
type InitCmd struct {
	Name       string `arg:"" help:"Name for the profile (e.g., production)"`
	Server     string `help:"Server URL" default:"http://localhost:8080"`
	APIKey     string `help:"API key created in the dashboard" env:"VIDEOINSIGHT_API_KEY" required:""`
	SetDefault bool   `help:"Set as the default profile" default:"false"`
	ConfigDir  string `help:"Custom config directory (default: ~/.videoinsight/)"`
}

func (c *InitCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}

	profile, err := store.Create(c.Name, c.Server, c.APIKey)
	if err != nil {
		if errors.Is(err, credentials.ErrProfileExists) {
			return fmt.Errorf("profile %q already exists\n\nTo delete and recreate:\n  videoinsight profiles delete %s\n  videoinsight init %s", c.Name, c.Name, c.Name)
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if c.SetDefault {
		if err := store.SetDefault(c.Name); err != nil {
			return fmt.Errorf("failed to set default: %w", err)
		}
	}

	fmt.Printf("Saved profile: %s\n", profile.Name)
	fmt.Printf("Server:        %s\n", profile.ServerURL)
	fmt.Printf("Key:           %s\n", profile.Fingerprint)
	fmt.Println()
	fmt.Println("Analyze a video with:")
	fmt.Println("  videoinsight analyze ./call.mp4")

	return nil
}
