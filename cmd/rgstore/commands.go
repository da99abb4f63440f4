package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/databio/rgstore"
	"github.com/databio/rgstore/pkg/fasta"
	"github.com/databio/rgstore/pkg/regions"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <fasta>",
		Short: "Compute sequence and collection digests without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := rgstore.DigestFasta(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "collection\t%s\n", col.Metadata.Digest)
			fmt.Fprintf(w, "names\t%s\n", col.Metadata.NamesDigest)
			fmt.Fprintf(w, "lengths\t%s\n", col.Metadata.LengthsDigest)
			fmt.Fprintf(w, "sequences\t%s\n", col.Metadata.SequencesDigest)
			for i := range col.Sequences {
				m := col.Sequences[i].Metadata
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.Name, m.Sha512t24u, m.Md5, m.Length, m.Alphabet)
			}
			return w.Flush()
		},
	}
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <fasta>...",
		Short: "Ingest FASTA files as collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, path := range args {
				col, err := s.AddCollectionFromFasta(path, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", col.Metadata.Digest, path)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite records that already exist")
	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <digest>",
		Short: "Print a sequence, or a substring with --start/--end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				rec, err := s.GetSequence(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("end") {
					end = rec.Metadata.Length
				}
				sub, err := s.GetSubstring(cmd.Context(), args[0], start, end)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(sub))
				return nil
			}

			rec, err := s.GetSequence(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			seq, ok := rec.Sequence()
			if !ok {
				return fmt.Errorf("no payload stored for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(seq))
			return nil
		},
	}
	cmd.Flags().Int("start", 0, "substring start (0-based, inclusive)")
	cmd.Flags().Int("end", 0, "substring end (exclusive)")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "list [sequences|collections]",
		Short:     "List stored sequences or collections",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"sequences", "collections"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			what := "collections"
			if len(args) == 1 {
				what = args[0]
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			if what == "sequences" {
				fmt.Fprintln(w, "NAME\tLENGTH\tALPHABET\tSHA512T24U\tMD5")
				for _, m := range s.ListSequences() {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.Name, m.Length, m.Alphabet, m.Sha512t24u, m.Md5)
				}
				return w.Flush()
			}
			fmt.Fprintln(w, "DIGEST\tSEQUENCES\tNAMES_DIGEST")
			for _, m := range s.ListCollections() {
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.Digest, m.NSequences, m.NamesDigest)
			}
			return w.Flush()
		},
	}
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <collection-digest>",
		Short: "Write a collection back to FASTA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			width, _ := cmd.Flags().GetInt("width")
			namesFlag, _ := cmd.Flags().GetString("names")
			s, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if width == 0 {
				width = cfg.LineWidth
			}
			var names []string
			if namesFlag != "" {
				names = strings.Split(namesFlag, ",")
			}
			return s.ExportFasta(cmd.Context(), args[0], out, names, width)
		},
	}
	cmd.Flags().StringP("output", "o", "out.fa", "output path; .gz compresses")
	cmd.Flags().Int("width", 0, "sequence line width")
	cmd.Flags().String("names", "", "comma-separated subset of sequence names")
	return cmd
}

func newRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions <collection-digest> <bed>",
		Short: "Retrieve BED regions from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			width, _ := cmd.Flags().GetInt("width")
			s, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if out != "" {
				if width == 0 {
					width = cfg.LineWidth
				}
				regs, err := regions.ReadBed(args[1])
				if err != nil {
					return err
				}
				return s.ExportFastaFromRegions(cmd.Context(), args[0], regs, out, width)
			}

			got, err := s.RetrieveRegionsFromBed(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, r := range got {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%d-%d\t%s\n", r.Name, r.Start, r.End, r.Sequence)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write regions as FASTA instead of TSV")
	cmd.Flags().Int("width", 0, "sequence line width for FASTA output")
	return cmd
}

func newAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage sequence and collection aliases",
	}
	cmd.PersistentFlags().String("ns", "default", "alias namespace")
	cmd.PersistentFlags().Bool("collection", false, "operate on collection aliases")
	cmd.AddCommand(newAliasAddCmd(), newAliasRmCmd(), newAliasLsCmd())
	return cmd
}

func newAliasAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <alias> <digest>",
		Short: "Point an alias at a digest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("ns")
			onCollection, _ := cmd.Flags().GetBool("collection")
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if onCollection {
				return s.AddCollectionAlias(ns, args[0], args[1])
			}
			return s.AddSequenceAlias(ns, args[0], args[1])
		},
	}
}

func newAliasRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <alias>",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("ns")
			onCollection, _ := cmd.Flags().GetBool("collection")
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if onCollection {
				return s.RemoveCollectionAlias(ns, args[0])
			}
			return s.RemoveSequenceAlias(ns, args[0])
		},
	}
}

func newAliasLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List aliases in a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("ns")
			onCollection, _ := cmd.Flags().GetBool("collection")
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			var aliases []rgstore.Alias
			if onCollection {
				aliases = s.ListCollectionAliases(ns)
			} else {
				aliases = s.ListSequenceAliases(ns)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tDIGEST")
			for _, a := range aliases {
				fmt.Fprintf(w, "%s\t%s\n", a.Alias, a.Digest)
			}
			return w.Flush()
		},
	}
}

func newFaiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fai <fasta-or-collection-digest>",
		Short: "Print a FASTA index (.fai)",
		Long: "With a FASTA path, indexes the file directly. With a stored\n" +
			"collection digest, computes the index its export would have.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")

			if _, err := os.Stat(args[0]); err == nil {
				rows, err := fasta.Fai(args[0])
				if err != nil {
					return err
				}
				for _, r := range rows {
					fmt.Fprintln(cmd.OutOrStdout(), r)
				}
				return nil
			}

			s, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if width == 0 {
				width = cfg.LineWidth
			}
			rows, err := s.CollectionFai(args[0], width)
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().Int("width", 0, "line width assumed for stored collections")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the store contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			st := s.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "sequences\t%d\n", st.Sequences)
			fmt.Fprintf(w, "loaded\t%d\n", st.SequencesLoaded)
			fmt.Fprintf(w, "collections\t%d\n", st.Collections)
			fmt.Fprintf(w, "sequence aliases\t%d\n", st.SequenceAliases)
			fmt.Fprintf(w, "collection aliases\t%d\n", st.CollectionAliases)
			return w.Flush()
		},
	}
}
