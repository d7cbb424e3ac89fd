package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/cmd/cli/internal/credentials"
)

// ProfilesCmd manages locally stored profiles.
type ProfilesCmd struct {
	List       ProfilesListCmd       `cmd:"" help:"List all profiles"`
	Delete     ProfilesDeleteCmd     `cmd:"" help:"Delete a profile"`
	SetDefault ProfilesSetDefaultCmd `cmd:"" name:"set-default" help:"Set the default profile"`
}

type ProfilesListCmd struct {
	ConfigDir string `help:"Custom config directory"`

	out io.Writer
}

func (c *ProfilesListCmd) Run(ctx context.Context, globals *Globals) error {
	if c.out == nil {
		c.out = os.Stdout
	}

	store, err := credentials.NewStore(c.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}

	profiles, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		fmt.Fprintln(c.out, "No profiles found.")
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "To add one:")
		fmt.Fprintln(c.out, "  videoinsight init <name> --server <url> --api-key <key>")
		return nil
	}

	defaultName := ""
	if def, err := store.GetDefault(); err == nil {
		defaultName = def.Name
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSERVER\tKEY\tDEFAULT")

	for _, p := range profiles {
		isDefault := ""
		if p.Name == defaultName {
			isDefault = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.ServerURL, p.Fingerprint, isDefault)
	}

	return w.Flush()
}

type ProfilesDeleteCmd struct {
	Name      string `arg:"" help:"Profile name"`
	ConfigDir string `help:"Custom config directory"`
}

func (c *ProfilesDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}

	if err := store.Delete(c.Name); err != nil {
		if errors.Is(err, credentials.ErrProfileNotFound) {
			return fmt.Errorf("profile %q not found", c.Name)
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	fmt.Printf("Profile %q deleted. The API key is still valid until revoked in the dashboard.\n", c.Name)
	return nil
}

type ProfilesSetDefaultCmd struct {
	Name      string `arg:"" help:"Profile name"`
	ConfigDir string `help:"Custom config directory"`
}

func (c *ProfilesSetDefaultCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(c.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}

	if err := store.SetDefault(c.Name); err != nil {
		if errors.Is(err, credentials.ErrProfileNotFound) {
			return fmt.Errorf("profile %q not found\n\nRun 'videoinsight profiles list' to see available profiles", c.Name)
		}
		return fmt.Errorf("failed to set default: %w", err)
	}

	fmt.Printf("Default profile set to %q.\n", c.Name)
	return nil
}
