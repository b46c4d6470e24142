package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// HistoryListAction prints recorded jobs.
func HistoryListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	recs, err := appCtx.Repo.ListJobRecords(ctx, historyFilter(cmd))
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.Root().Writer, "no jobs recorded")
		return nil
	}
	renderRecords(cmd.Root().Writer, recs)
	return nil
}

// HistoryExportAction writes recorded jobs to an xlsx workbook.
func HistoryExportAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close(ctx)

	data, err := appCtx.Exporter.ExportXLSX(ctx, historyFilter(cmd))
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.Root().Writer, "exported history to %s\n", out)
	return nil
}

func historyFilter(cmd *cli.Command) domain.JobFilter {
	return domain.JobFilter{
		Outcome: isamurai.Outcome(cmd.String("outcome")),
		Kind:    isamurai.JobKind(cmd.String("kind")),
		Limit:   int(cmd.Int("limit")),
	}
}
