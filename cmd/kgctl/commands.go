package main

import (
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"

	"github.com/spf13/cobra"
)

type ingestOutput struct {
	DocumentID    string   `json:"document_id"`
	Chunks        int      `json:"chunks"`
	Entities      int      `json:"entities"`
	Relationships int      `json:"relationships"`
	Dropped       []string `json:"dropped_relationships,omitempty"`
	Skipped       []string `json:"skipped_units,omitempty"`
}

func newIngestCmd(rt func() *runtime) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "ingest <file|url|s3://key>",
		Short: "Extract a document into the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			text, err := r.loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			docID := id
			if docID == "" {
				docID = documentIDFor(args[0])
			}

			res, err := r.graph.ProcessDocument(cmd.Context(), docID, string(text))
			if err != nil {
				return err
			}
			out := ingestOutput{
				DocumentID: res.DocumentID,
				Chunks:     res.Chunks,
				Entities:   len(res.Entities),
			}
			if res.Write != nil {
				out.Entities = res.Write.Entities
				out.Relationships = res.Write.Relationships
				for _, d := range res.Write.Dropped {
					out.Dropped = append(out.Dropped, d.SourceName+" -> "+d.TargetName)
				}
			}
			for _, s := range res.Skipped {
				out.Skipped = append(out.Skipped, s.UnitID)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id (default derived from the file name)")
	return cmd
}

// documentIDFor derives a stable id from a file name, falling back to a
// random one for references without a usable base name.
func documentIDFor(ref string) string {
	base := filepath.Base(strings.TrimRight(ref, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" || strings.Contains(ref, "?") {
		id, err := util.NewID("doc")
		if err != nil {
			return "doc"
		}
		return id
	}
	return base
}

func newClaimCmd(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <file|url|s3://key>",
		Short: "Analyse an insurance claim and store its parties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			text, err := r.loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a, err := r.graph.AnalyzeInsuranceClaim(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		},
	}
}

func newSearchCmd(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Global search over entity names and descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt().search.GlobalSearch(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newLocalCmd(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "local <entity> [query]",
		Short: "Local search around one entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt().search.LocalSearch(cmd.Context(), strings.Join(args[1:], " "), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newRecommendCmd(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <user>",
		Short: "Recommend insurance products for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := rt().graph.GetInsuranceRecommendations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, recs)
		},
	}
}
