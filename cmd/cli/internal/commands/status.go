package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/client"
)

// StatusCmd shows a job, optionally waiting for it to finish.
type StatusCmd struct {
	ConnectionFlags `embed:""`

	JobID    string        `arg:"" help:"Job ID returned by analyze"`
	Wait     bool          `help:"Poll until the job succeeds or fails" default:"false"`
	Interval time.Duration `help:"Polling interval" default:"2s"`
	MaxWait  time.Duration `help:"Give up waiting after this long" default:"10m"`

	out io.Writer
}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	if c.out == nil {
		c.out = os.Stdout
	}

	jobID, err := uuid.Parse(c.JobID)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", c.JobID, err)
	}

	api, err := c.newClient(30 * time.Second)
	if err != nil {
		return err
	}

	var job *client.Job
	if c.Wait {
		job, err = api.WaitForJob(ctx, jobID, c.Interval, c.MaxWait)
		if errors.Is(err, client.ErrStillProcessing) {
			if perr := printJSON(c.out, job); perr != nil {
				return perr
			}
			return fmt.Errorf("job %s did not finish within %s", jobID, c.MaxWait)
		}
	} else {
		job, err = api.GetJob(ctx, jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if err := printJSON(c.out, job); err != nil {
		return err
	}

	if job.Status == "FAILED" && job.Error != nil {
		return fmt.Errorf("analysis failed: %s: %s", job.Error.Code, job.Error.Message)
	}
	return nil
}
