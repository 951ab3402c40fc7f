package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/download"
	"brandviz.io/studio/internal/workflow"
)

var (
	groupsThreshold float64
	maxClusters     int
	generateCount   int
	generateSave    bool
	generationLimit int
)

var groupsCmd = &cobra.Command{
	Use:   "groups [brand]",
	Short: "List the feedback groups of a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroups,
}

var generateCmd = &cobra.Command{
	Use:   "generate [brand] [group-id]",
	Short: "Generate design variations from one feedback group",
	Args:  cobra.ExactArgs(2),
	RunE:  runGenerate,
}

var downloadCmd = &cobra.Command{
	Use:   "download [generation-id]",
	Short: "Download the images of a past generation",
	Long: `Downloads the images of a past generation. When the service no longer
knows the id, the URLs recorded in the local history are used instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var generationsCmd = &cobra.Command{
	Use:   "generations [brand]",
	Short: "List past generations of a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerations,
}

var generationCmd = &cobra.Command{
	Use:   "generation [generation-id]",
	Short: "Show one past generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeneration,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the grouping service",
	RunE:  runHealth,
}

func init() {
	for _, cmd := range []*cobra.Command{groupsCmd, generateCmd} {
		cmd.Flags().Float64Var(&groupsThreshold, "threshold", 0, "Similarity threshold, 0.60-0.95 (default DEFAULT_THRESHOLD)")
		cmd.Flags().IntVar(&maxClusters, "max-clusters", 0, "Maximum number of groups (default: let the service decide)")
	}
	generateCmd.Flags().IntVarP(&generateCount, "variations", "n", 0, "Number of variations (default DEFAULT_VARIATIONS)")
	generateCmd.Flags().BoolVar(&generateSave, "save", false, "Download the generated images")
	generationsCmd.Flags().IntVar(&generationLimit, "limit", 50, "Maximum generations")
}

// loadGroups applies the threshold and cluster flags, then fetches the groups of brand.
func loadGroups(cmd *cobra.Command, a *app, brand string) error {
	if groupsThreshold != 0 {
		if err := a.state.SetThreshold(groupsThreshold); err != nil {
			return err
		}
	}
	if maxClusters < 0 {
		return fmt.Errorf("--max-clusters must not be negative, got %d", maxClusters)
	}
	a.studio.SetMaxClusters(maxClusters)
	return a.studio.FetchGroups(cmd.Context(), brand)
}

func runGroups(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := loadGroups(cmd, a, args[0]); err != nil {
		return err
	}
	snap := a.state.Snapshot()
	if asJSON {
		return printJSON(cmd.OutOrStdout(), snap.Groups)
	}
	printGroups(cmd.OutOrStdout(), snap)
	return nil
}

func printGroups(out io.Writer, snap workflow.Snapshot) {
	if len(snap.Groups) == 0 {
		fmt.Fprintln(out, snap.Notice)
		return
	}
	fmt.Fprintf(out, "%d groups for %s from %d feedback entries (threshold %.2f)\n", len(snap.Groups), snap.Brand, snap.TotalFeedback, snap.Threshold)
	for _, g := range snap.Groups {
		fmt.Fprintf(out, "\n[%d] %d%% relevance (%s), %d items\n", g.GroupID, g.RelevancePercent(), g.RelevanceTier(), g.Count())
		if g.Summary != "" {
			fmt.Fprintf(out, "    %s\n", g.Summary)
		}
		if g.KeyThemes != "" {
			fmt.Fprintf(out, "    Key themes: %s\n", g.KeyThemes)
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	groupID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("group id must be a number: %w", err)
	}

	a, err := newApp(cmd.Context(), cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := loadGroups(cmd, a, args[0]); err != nil {
		return err
	}
	if err := a.studio.Generate(cmd.Context(), groupID, generateCount); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return errors.New(workflow.EmptyGroupsNotice)
		}
		return err
	}

	snap := a.state.Snapshot()
	if asJSON && !generateSave {
		return printJSON(cmd.OutOrStdout(), snap.Images)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated %d variations for %s, group %d\n", len(snap.Images), snap.Brand, groupID)
	printImages(out, snap.Images)

	if !generateSave {
		return nil
	}
	items := make([]download.Item, 0, len(snap.Images))
	for _, img := range snap.Images {
		items = append(items, download.Item{Image: img, Filename: img.Filename(snap.Brand, groupID)})
	}
	return saveAll(cmd, a, items)
}

func printImages(out io.Writer, images []domain.GeneratedImage) {
	for _, img := range images {
		src := img.URL
		if img.Inline() {
			src = fmt.Sprintf("(inline, %d base64 bytes)", len(img.Base64))
		}
		fmt.Fprintf(out, "  v%d  %s\n", img.VariationNumber, src)
	}
}

func saveAll(cmd *cobra.Command, a *app, items []download.Item) error {
	results, err := a.downloader.BatchDownload(cmd.Context(), items, cfg.DownloadDelay)
	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		switch {
		case res.FellBack:
			fmt.Fprintf(out, "%s: could not fetch it, opened in the browser instead\n", res.Filename)
		case res.Err != nil:
			failed++
			fmt.Fprintf(out, "%s: %v\n", res.Filename, res.Err)
		default:
			fmt.Fprintf(out, "Saved %s (%d bytes)\n", res.Path, res.Bytes)
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(results))
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var items []download.Item
	gen, err := a.client.GetGeneration(cmd.Context(), args[0])
	switch {
	case errors.Is(err, client.ErrGenerationNotFound):
		items, err = localItems(a, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generation %s is gone from the service, using the local history.\n", args[0])
	case err != nil:
		return err
	default:
		for _, img := range gen.Images {
			items = append(items, download.Item{Image: img, Filename: img.Filename(gen.BrandName, gen.GroupID)})
		}
	}
	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Generation %s has no images.\n", args[0])
		return nil
	}
	return saveAll(cmd, a, items)
}

// localItems rebuilds download items from the history record of a
// generation. Inline images are not persisted and are skipped.
func localItems(a *app, id string) ([]download.Item, error) {
	if a.history == nil {
		return nil, fmt.Errorf("no generation with id %s", id)
	}
	gen, err := a.history.GetGeneration(id)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("no generation with id %s", id)
	}
	var items []download.Item
	for _, img := range gen.Images {
		if img.URL == "" {
			continue
		}
		image := domain.GeneratedImage{URL: img.URL, VariationNumber: img.VariationNumber}
		items = append(items, download.Item{Image: image, Filename: image.Filename(gen.BrandName, gen.GroupID)})
	}
	return items, nil
}

func runGenerations(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.GetBrandGenerations(cmd.Context(), args[0], generationLimit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d generations for %s\n", len(resp.Generations), args[0])
	for _, gen := range resp.Generations {
		fmt.Fprintf(out, "  %s  group %d, %d images  %s\n", gen.ID, gen.GroupID, len(gen.Images), gen.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runGeneration(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.client.GetGeneration(cmd.Context(), args[0])
	if errors.Is(err, client.ErrGenerationNotFound) {
		return fmt.Errorf("no generation with id %s", args[0])
	}
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), gen)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generation %s: %s, group %d\n", gen.ID, gen.BrandName, gen.GroupID)
	if gen.GroupSummary != "" {
		fmt.Fprintf(out, "Summary: %s\n", gen.GroupSummary)
	}
	if gen.Prompt != "" {
		fmt.Fprintf(out, "Prompt: %s\n", gen.Prompt)
	}
	printImages(out, gen.Images)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.HealthCheck(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nvector store: %t\nimage model: %t\n", resp.Status, resp.VectorStore, resp.OpenAI)
	return nil
}
