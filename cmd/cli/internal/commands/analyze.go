package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/client"
	"github.com/rs/zerolog/log"
)

var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// AnalyzeCmd submits a local file or a URL for analysis.
type AnalyzeCmd struct {
	ConnectionFlags `embed:""`

	File       string        `arg:"" optional:"" help:"Local video file, uploaded inline" type:"existingfile"`
	URL        string        `help:"Publicly reachable video URL, instead of a file"`
	MimeType   string        `help:"Video mime type (default: from the file extension)"`
	WebhookURL string        `help:"URL notified when the job finishes"`
	Async      bool          `help:"Return as soon as the job is created" default:"false"`
	Timeout    time.Duration `help:"How long the server waits for the result (10s-300s)" default:"120s"`

	out io.Writer
}

func (c *AnalyzeCmd) Validate() error {
	if (c.File == "") == (c.URL == "") {
		return errors.New("provide either a file or --url")
	}
	if c.Timeout < 10*time.Second || c.Timeout > 300*time.Second {
		return errors.New("--timeout must be between 10s and 300s")
	}
	return nil
}

func (c *AnalyzeCmd) Run(ctx context.Context, globals *Globals) error {
	if c.out == nil {
		c.out = os.Stdout
	}

	// leave headroom over the server-side wait
	api, err := c.newClient(c.Timeout + time.Minute)
	if err != nil {
		return err
	}

	req := &client.AnalyzeRequest{
		VideoURL:       c.URL,
		MimeType:       c.MimeType,
		WebhookURL:     c.WebhookURL,
		Async:          c.Async,
		TimeoutSeconds: int(c.Timeout / time.Second),
	}

	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("failed to read video: %w", err)
		}
		req.VideoBase64 = base64.StdEncoding.EncodeToString(data)
		req.FileName = filepath.Base(c.File)
		if req.MimeType == "" {
			req.MimeType = mimeTypes[strings.ToLower(filepath.Ext(c.File))]
		}
		log.Debug().Str("file", c.File).Int("bytes", len(data)).Msg("Uploading video inline")
	}

	resp, err := api.Analyze(ctx, req)
	if resp != nil {
		if perr := printJSON(c.out, resp); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	if resp.Status == "FAILED" && resp.Error != nil {
		return fmt.Errorf("analysis failed: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Status == "PROCESSING" {
		fmt.Fprintf(os.Stderr, "Still processing, check later with:\n  videoinsight status %s --wait\n", resp.JobID)
	}

	return nil
}
