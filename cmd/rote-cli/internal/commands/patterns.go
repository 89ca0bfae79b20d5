package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/display"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

func NewPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and maintain the learned pattern store",
		Long: `Work with the patterns the engine has learned: list them, inspect one in
full, or evict the ones whose reliability has decayed.

Patterns are what make repeated tasks cheap. A healthy store means most runs
replay remembered steps instead of spending vision calls.`,
	}

	cmd.AddCommand(newPatternsListCommand())
	cmd.AddCommand(newPatternsShowCommand())
	cmd.AddCommand(newPatternsPurgeCommand())

	return cmd
}

func newPatternsListCommand() *cobra.Command {
	var (
		taskType       string
		minSuccessRate float64
		minConfidence  float64
		tags           []string
		capabilities   []string
		maxAgeDays     int
		sortBy         string
		limit          int
		typesOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned patterns, best first",
		Example: `  # Everything the engine knows
  rote-cli patterns list

  # Reliable lead-creation patterns only
  rote-cli patterns list --task-type create_lead --min-success-rate 0.8

  # The most exercised patterns
  rote-cli patterns list --sort usage --limit 5`,
		Run: func(cmd *cobra.Command, args []string) {
			sort, err := parseSortBy(sortBy)
			if err != nil {
				exitErr(err)
			}
			criteria := patterns.Criteria{
				TaskType:             taskType,
				MinSuccessRate:       minSuccessRate,
				MinConfidence:        minConfidence,
				RequiredTags:         tags,
				RequiredCapabilities: capabilities,
				MaxAgeDays:           maxAgeDays,
				SortBy:               sort,
				Limit:                limit,
			}
			if err := listPatterns(cmd, criteria, typesOnly); err != nil {
				exitErr(err)
			}
		},
	}

	cmd.Flags().StringVar(&taskType, "task-type", "", "Only patterns for this task type")
	cmd.Flags().Float64Var(&minSuccessRate, "min-success-rate", 0, "Minimum success rate, 0 to 1")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Minimum confidence, 0 to 1")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Require a tag (repeatable)")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "Require a capability (repeatable)")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Only patterns updated in the last N days (0 = no limit)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort order: success_rate, confidence, usage, or recency")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the number of results (0 = all)")
	cmd.Flags().BoolVar(&typesOnly, "types", false, "Only list task types and their pattern counts")

	return cmd
}

func listPatterns(cmd *cobra.Command, criteria patterns.Criteria, typesOnly bool) error {
	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.FindPatterns(cmd.Context(), criteria)
	if err != nil {
		return err
	}

	if typesOnly {
		fmt.Print(display.FormatTaskTypes(list))
		return nil
	}
	fmt.Print(display.FormatPatternList(list))
	return nil
}

func newPatternsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <pattern-id>",
		Short: "Show one pattern in full, including selector reliability",
		Long: `Display everything the store knows about one pattern: the remembered
action sequence, per-selector reliability with recent failure reasons, the
conditions that gate it, and its usage statistics.

The id may be abbreviated to any unambiguous prefix.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := showPattern(cmd, args[0]); err != nil {
				exitErr(err)
			}
		},
	}
}

func showPattern(cmd *cobra.Command, idOrPrefix string) error {
	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := resolvePatternID(cmd.Context(), store, idOrPrefix)
	if err != nil {
		return err
	}
	p, err := store.Pattern(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Print(display.FormatPatternDetails(p))
	return nil
}

// resolvePatternID accepts a full pattern id or an unambiguous prefix.
func resolvePatternID(ctx context.Context, store *patterns.Store, idOrPrefix string) (string, error) {
	if _, err := store.Pattern(ctx, idOrPrefix); err == nil {
		return idOrPrefix, nil
	}

	all, err := store.FindPatterns(ctx, patterns.Criteria{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, p := range all {
		if strings.HasPrefix(p.ID, idOrPrefix) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no pattern matches %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches %s", idOrPrefix, strings.Join(matches, ", "))
	}
}

func newPatternsPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Evict patterns whose reliability has decayed",
		Long: `Run an eviction sweep now instead of waiting for the background interval.
Patterns are evicted once they have enough history to judge and their
success rate or staleness has fallen below the retention thresholds.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := purgePatterns(cmd); err != nil {
				exitErr(err)
			}
		},
	}
}

func purgePatterns(cmd *cobra.Command) error {
	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	before := store.Stats().PatternCount
	if err := store.Sweep(cmd.Context()); err != nil {
		return err
	}
	after := store.Stats().PatternCount

	fmt.Printf("Evicted %d pattern(s), %d remain\n", before-after, after)
	return nil
}

func parseSortBy(s string) (patterns.SortBy, error) {
	switch s {
	case "", "success_rate":
		return patterns.SortBySuccessRate, nil
	case "confidence":
		return patterns.SortByConfidence, nil
	case "usage":
		return patterns.SortByUsage, nil
	case "recency":
		return patterns.SortByRecency, nil
	}
	return "", fmt.Errorf("unknown sort %q (use success_rate, confidence, usage, or recency)", s)
}
