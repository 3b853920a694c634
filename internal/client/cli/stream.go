package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/drivekeeper/internal/drive"
	"github.com/dmitrijs2005/drivekeeper/internal/stream"
)

// Stream plays a segmented video payload into DownloadDir and prints the
// playback states until the stream ends or fails.
func (a *App) Stream(ctx context.Context, args []string) error {
	if err := a.requireDrive(); err != nil {
		return err
	}
	const usage = "stream <fileId> <key> [rate]"
	id, err := parseFileID(args, 2, usage)
	if err != nil {
		return err
	}
	rate := 1.0
	switch len(args) {
	case 2:
	case 3:
		if rate, err = strconv.ParseFloat(args[2], 64); err != nil || rate <= 0 {
			return fmt.Errorf("%w: %s", errUsage, usage)
		}
	default:
		return fmt.Errorf("%w: %s", errUsage, usage)
	}

	var src *drive.VideoSource
	if a.remote != "" {
		if src, err = drive.NewPeerVideoSource(a.provider, a.remote, a.drive, id, args[1]); err != nil {
			return err
		}
	} else {
		src = drive.NewVideoSource(a.provider, a.drive, id, args[1])
	}
	defer src.Close()

	path := a.outputPath(id, args[1])
	return a.play(ctx, src, newFileElement(path, rate), path)
}

func (a *App) play(ctx context.Context, src *drive.VideoSource, el *fileElement, path string) error {
	c := a.config
	eng := stream.New(src, src,
		stream.WithLogger(a.logger.With("module", "stream")),
		stream.WithThreshold(c.PrefetchThreshold),
		stream.WithTimeUpdateInterval(c.TimeUpdateInterval),
		stream.WithFetchTimeout(c.FetchTimeout),
		stream.WithMaxFetchAttempts(c.MaxFetchAttempts),
	)
	defer eng.Dispose()

	if err := eng.Attach(el); err != nil {
		return err
	}
	events := eng.Subscribe()
	if err := eng.Play(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.printf("stream: %s\n", ev.State)
			switch ev.State {
			case stream.StateEnded:
				a.printf("Wrote %d bytes to %s\n", el.written(), path)
				return nil
			case stream.StateError:
				return ev.Err
			}
		}
	}
}
