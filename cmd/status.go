package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mhc-map/mhc-geo/internal/model"
	"github.com/mhc-map/mhc-geo/internal/resolve"
	"github.com/mhc-map/mhc-geo/internal/table"
)

var (
	statusTable  string
	statusFormat string
)

// tableStatus is where a resolution table stands in the pipeline.
type tableStatus struct {
	Table   string           `yaml:"table"`
	State   model.Stage      `yaml:"state"`
	Next    model.Stage      `yaml:"next,omitempty"`
	Rows    int              `yaml:"rows"`
	Missing int              `yaml:"missing"`
	History []model.StageRun `yaml:"history"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pipeline stage and missing count of a table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.Store.ListStages(ctx, resolve.TableKey(statusTable))
		if err != nil {
			return err
		}
		t, err := table.Load(statusTable)
		if err != nil {
			return eris.Wrap(err, "status: load table")
		}

		st := buildStatus(statusTable, t, cfg.Table, runs)
		switch statusFormat {
		case "yaml":
			return writeStatusYAML(cmd.OutOrStdout(), st)
		case "text":
			writeStatusText(cmd.OutOrStdout(), st)
			return nil
		default:
			return eris.Errorf("status: unknown format %q", statusFormat)
		}
	},
}

func buildStatus(path string, t *table.Table, cols table.Columns, runs []model.StageRun) tableStatus {
	state := model.CurrentStage(runs)
	return tableStatus{
		Table:   resolve.TableKey(path),
		State:   state,
		Next:    state.Next(),
		Rows:    t.Len(),
		Missing: len(t.MissingRows(cols)),
		History: runs,
	}
}

func writeStatusYAML(w io.Writer, st tableStatus) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return eris.Wrap(err, "status: encode yaml")
	}
	return eris.Wrap(enc.Close(), "status: flush yaml")
}

func writeStatusText(w io.Writer, st tableStatus) {
	fmt.Fprintf(w, "table:   %s\n", st.Table)
	if st.Next != "" {
		fmt.Fprintf(w, "state:   %s (next: %s)\n", st.State, st.Next)
	} else {
		fmt.Fprintf(w, "state:   %s\n", st.State)
	}
	fmt.Fprintf(w, "missing: %d of %d rows\n", st.Missing, st.Rows)
	if len(st.History) == 0 {
		return
	}
	fmt.Fprintln(w, "history:")
	for _, r := range st.History {
		fmt.Fprintf(w, "  %s  %-22s loops=%d resolved=%d remaining=%d\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"), r.Stage, r.Loops, r.Resolved, r.Remaining)
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusTable, "table", "", "resolution table")
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text or yaml")
	_ = statusCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(statusCmd)
}
