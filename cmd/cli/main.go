package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/cmd/cli/internal/commands"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/logger"
	"github.com/rs/zerolog/log"
)

var (
	version = "dev"
	cli     struct {
		Init     commands.InitCmd     `cmd:"" help:"Save a server URL and API key"`
		Analyze  commands.AnalyzeCmd  `cmd:"" help:"Analyze a video"`
		Status   commands.StatusCmd   `cmd:"" help:"Show a job's status and results"`
		Profiles commands.ProfilesCmd `cmd:"" help:"Manage saved profiles"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("videoinsight"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
