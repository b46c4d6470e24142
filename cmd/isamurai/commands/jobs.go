package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/internal/core/services"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// SwapAction submits a single face swap.
func SwapAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	req := isamurai.FaceSwapRequest{
		SourcePath: cmd.Args().Get(0),
		TargetPath: cmd.Args().Get(1),
		Quality:    isamurai.Quality(cmd.String("quality")),
		Name:       cmd.String("name"),
	}
	return runSubmit(ctx, cmd, func(t *services.JobTracker) (domain.JobRecord, error) {
		return t.SubmitFaceSwap(ctx, req)
	})
}

// MultiSwapAction submits a multi face swap.
func MultiSwapAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	req := isamurai.MultiSwapRequest{
		SourcePaths: cmd.StringSlice("source"),
		TargetPath:  cmd.Args().First(),
		Quality:     isamurai.Quality(cmd.String("quality")),
		Name:        cmd.String("name"),
	}
	return runSubmit(ctx, cmd, func(t *services.JobTracker) (domain.JobRecord, error) {
		return t.SubmitMultiSwap(ctx, req)
	})
}

// SlowMotionAction submits a slow motion render.
func SlowMotionAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	req := isamurai.SlowMotionRequest{
		TargetPath: cmd.Args().First(),
		Factor:     int(cmd.Int("factor")),
		Name:       cmd.String("name"),
	}
	return runSubmit(ctx, cmd, func(t *services.JobTracker) (domain.JobRecord, error) {
		return t.SubmitSlowMotion(ctx, req)
	})
}

// RestoreAction submits a face restoration.
func RestoreAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	req := isamurai.RestoreRequest{
		TargetPath: cmd.Args().First(),
		Name:       cmd.String("name"),
	}
	return runSubmit(ctx, cmd, func(t *services.JobTracker) (domain.JobRecord, error) {
		return t.SubmitRestore(ctx, req)
	})
}

func runSubmit(ctx context.Context, cmd *cli.Command, submit func(*services.JobTracker) (domain.JobRecord, error)) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	tracker, err := appCtx.RequireTracker()
	if err != nil {
		return err
	}

	rec, err := submit(tracker)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "submitted %s job %s\n", rec.Kind, rec.ID)
	if !cmd.Bool("wait") {
		return nil
	}

	rec, err = tracker.Wait(ctx, rec.ID, waitRequest(cmd, w))
	renderRecord(w, rec)
	return err
}

// StatusAction fetches one status observation.
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	tracker, err := appCtx.RequireTracker()
	if err != nil {
		return err
	}

	rec, _, err := tracker.Refresh(ctx, isamurai.JobID(cmd.Args().First()), cmd.Bool("multi"))
	if err != nil {
		return err
	}
	renderRecord(cmd.Root().Writer, rec)
	return nil
}

// WaitAction polls one job until it reaches a terminal state.
func WaitAction(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	tracker, err := appCtx.RequireTracker()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	rec, err := tracker.Wait(ctx, isamurai.JobID(cmd.Args().First()), waitRequest(cmd, w))
	renderRecord(w, rec)
	return err
}

// WaitAllAction polls several jobs, either the ids given or every pending
// job in the history.
func WaitAllAction(ctx context.Context, cmd *cli.Command) error {
	pending := cmd.Bool("pending")
	ids := make([]isamurai.JobID, 0, cmd.Args().Len())
	for _, a := range cmd.Args().Slice() {
		ids = append(ids, isamurai.JobID(a))
	}
	if pending == (len(ids) > 0) {
		return errors.New("give either job ids or --pending")
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	tracker, err := appCtx.RequireTracker()
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	req := waitRequest(cmd, w)
	req.Concurrency = int(cmd.Int("concurrency"))

	var (
		records []domain.JobRecord
		results []isamurai.WaitResult
	)
	if pending {
		records, results, err = tracker.WaitPending(ctx, req)
	} else {
		records, results, err = tracker.WaitAll(ctx, ids, req)
	}
	if len(records) == 0 && err == nil {
		fmt.Fprintln(w, "no pending jobs")
		return nil
	}
	renderRecords(w, records)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Outcome != isamurai.OutcomeSucceeded {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs did not succeed", failed, len(results))
	}
	return nil
}

// waitRequest maps the poll flags. Progress lines may come from several
// goroutines under wait-all.
func waitRequest(cmd *cli.Command, w io.Writer) services.WaitRequest {
	var mu sync.Mutex
	return services.WaitRequest{
		Multi:    cmd.Bool("multi"),
		Interval: cmd.Duration("interval"),
		Timeout:  cmd.Duration("timeout"),
		OnProgress: func(s *isamurai.JobStatus) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", s.ID, s.Status, s.Progress())
		},
	}
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() != n {
		return fmt.Errorf("%s expects %d argument(s): %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return nil
}
