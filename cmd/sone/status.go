// Status command for the sone CLI.
package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// statusRow is what the store knows about one identity without a running
// engine. Modified is only meaningful for identities with a local draft.
type statusRow struct {
	IdentityID  string     `json:"identity_id"`
	Edition     int64      `json:"edition"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Own         bool       `json:"own"`
	Modified    bool       `json:"modified"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the stored synchronization state of every identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		backend, err := attachBackend(dataDir)
		if err != nil {
			return err
		}
		defer backend.Detach()

		rows, err := collectStatus(backend)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTITY\tEDITION\tUPDATED\tOWN\tMODIFIED")
		for _, r := range rows {
			updated := "-"
			if r.UpdatedAt != nil {
				updated = r.UpdatedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%t\n", r.IdentityID, r.Edition, updated, r.Own, r.Modified)
		}
		return w.Flush()
	},
}

func collectStatus(store types.Store) ([]statusRow, error) {
	rows := map[string]*statusRow{}
	row := func(id string) *statusRow {
		r, ok := rows[id]
		if !ok {
			r = &statusRow{IdentityID: id}
			rows[id] = r
		}
		return r
	}

	editions, err := fetchAll(store, types.EditionsTable)
	if err != nil {
		return nil, err
	}
	for _, v := range editions {
		e := v.(*types.EditionRecord)
		r := row(e.IdentityID)
		r.Edition = e.Edition
		r.UpdatedAt = &e.UpdatedAt
	}

	published := map[string]string{}
	fps, err := fetchAll(store, types.FingerprintsTable)
	if err != nil {
		return nil, err
	}
	for _, v := range fps {
		f := v.(*types.FingerprintRecord)
		r := row(f.IdentityID)
		r.Own = true
		r.PublishedAt = &f.PublishedAt
		published[f.IdentityID] = f.Fingerprint
	}

	drafts, err := fetchAll(store, types.DraftsTable)
	if err != nil {
		return nil, err
	}
	for _, v := range drafts {
		d := v.(*types.DocumentRecord)
		r := row(d.IdentityID)
		r.Own = true
		g, err := document.Parse(d.IdentityID, d.Body)
		if err != nil {
			continue
		}
		want, ok := published[d.IdentityID]
		if !ok {
			want = string(fingerprint.Of(types.NewGraph(d.IdentityID)))
		}
		r.Modified = string(fingerprint.Of(g)) != want
	}

	out := make([]statusRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b statusRow) int { return strings.Compare(a.IdentityID, b.IdentityID) })
	return out, nil
}

func fetchAll(store types.Store, name string) ([]any, error) {
	tbl, err := store.GetTable(name)
	if err != nil {
		return nil, fmt.Errorf("%s table: %w", name, err)
	}
	rows, err := tbl.Fetch(nil)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	return rows, nil
}
