package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/lexicon"
	"github.com/ironsheep/ocr-decoder/internal/storage"
)

func newLexiconCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Manage the Redis word list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load words.txt",
		Short: "Add the frequencies of a word file to the Redis lexicon",
		Long: `Add the frequencies of a word file to the Redis lexicon. Each line holds a
word, optionally followed by a tab and its frequency. Frequencies add to the
ones already stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc := a.cfg.Lexicon
			if lc.RedisURL == "" {
				return fmt.Errorf("lexicon.redis_url is not configured")
			}
			n, err := a.normalizer()
			if err != nil {
				return err
			}
			words, err := lexicon.LoadMap(args[0], n)
			if err != nil {
				return err
			}
			rl, err := lexicon.DialRedisLexicon(cmd.Context(), lc.RedisURL, lc.RedisKey, n)
			if err != nil {
				return err
			}
			a.onClose(rl)
			if err := rl.Load(cmd.Context(), words.Words()); err != nil {
				return err
			}
			size, err := rl.Len(cmd.Context())
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"file": args[0], "words": words.Len(), "lexicon": size}).Info("lexicon loaded")
			return nil
		},
	})
	return cmd
}

func (a *app) splitStore(cmd *cobra.Command) (*storage.SplitStore, error) {
	store, err := a.openSplits(cmd.Context())
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("storage.url is not configured")
	}
	return store, nil
}

func parseInt64(s, what string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return v, nil
}

func newSplitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Manage stored split candidates",
		Long: `Manage stored split candidates: cut points inside shapes that hold several
touching letters. Shape keys are printed by the detect command.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add shape-key position",
			Short: "Store a cut at position pixels from the shape's left edge",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := parseInt64(args[0], "shape key")
				if err != nil {
					return err
				}
				pos, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid position %q: %w", args[1], err)
				}
				store, err := a.splitStore(cmd)
				if err != nil {
					return err
				}
				sp := &boundary.Split{ShapeKey: key, Position: pos}
				if err := store.SaveSplit(cmd.Context(), sp); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sp.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list shape-key ...",
			Short: "List the splits of shapes",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys := make([]int64, len(args))
				for i, arg := range args {
					k, err := parseInt64(arg, "shape key")
					if err != nil {
						return err
					}
					keys[i] = k
				}
				store, err := a.splitStore(cmd)
				if err != nil {
					return err
				}
				byShape, err := store.FindSplitsByShapes(cmd.Context(), keys)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, k := range keys {
					for _, sp := range byShape[k] {
						fmt.Fprintf(out, "%d\t%d\t%d\n", sp.ID, sp.ShapeKey, sp.Position)
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete split-id",
			Short: "Delete a stored split",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt64(args[0], "split id")
				if err != nil {
					return err
				}
				store, err := a.splitStore(cmd)
				if err != nil {
					return err
				}
				return store.DeleteSplit(cmd.Context(), id)
			},
		},
	)
	return cmd
}
