package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brandviz.io/studio/internal/client"
	"brandviz.io/studio/internal/domain"
)

var (
	submitBrand       string
	submitDescription string
	submitTone        string
	submitStyle       string
	submitColors      []string
	submitDislikes    string

	searchBrand string
	searchLimit int

	statsBrand string

	feedbackLimit int

	historyBrand string
	historyLimit int
)

var submitCmd = &cobra.Command{
	Use:     "submit",
	Short:   "Submit one brand preference",
	Example: `  studio submit --brand Nike --description "bold sporty" --tone bold --style geometric --color "#000000"`,
	RunE:    runSubmit,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored feedback by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feedback statistics",
	RunE:  runStats,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback [brand]",
	Short: "List the feedback stored for a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedback,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submissions and generations recorded locally",
	RunE:  runHistory,
}

func init() {
	submitCmd.Flags().StringVar(&submitBrand, "brand", "", "Brand name (required)")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "What the brand should feel like (required)")
	submitCmd.Flags().StringVar(&submitTone, "tone", string(domain.ToneModern), "Tone")
	submitCmd.Flags().StringVar(&submitStyle, "style", string(domain.StyleMinimalist), "Visual style")
	submitCmd.Flags().StringSliceVar(&submitColors, "color", domain.DefaultColors, "Hex colors, repeatable")
	submitCmd.Flags().StringVar(&submitDislikes, "dislikes", "", "Anything to avoid")
	submitCmd.MarkFlagRequired("brand")
	submitCmd.MarkFlagRequired("description")

	searchCmd.Flags().StringVar(&searchBrand, "brand", "", "Restrict to one brand")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results")

	statsCmd.Flags().StringVar(&statsBrand, "brand", "", "Restrict to one brand")

	feedbackCmd.Flags().IntVar(&feedbackLimit, "limit", 50, "Maximum entries")

	historyCmd.Flags().StringVar(&historyBrand, "brand", "", "Restrict to one brand")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries per list")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p := domain.Preference{
		BrandName:   submitBrand,
		Description: submitDescription,
		Tone:        domain.Tone(submitTone),
		VisualStyle: domain.VisualStyle(submitStyle),
		Colors:      submitColors,
		Dislikes:    submitDislikes,
	}
	resp, err := a.preferences.Submit(cmd.Context(), p)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	if !resp.Stored {
		fmt.Fprintf(cmd.OutOrStdout(), "The service did not confirm the preference for %s was stored.\n", p.BrandName)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored preference for %s.\n", strings.TrimSpace(p.BrandName))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	req := client.SearchRequest{QueryText: strings.Join(args, " "), Limit: searchLimit}
	if searchBrand != "" {
		req.BrandName = &searchBrand
	}
	resp, err := a.client.SearchFeedback(cmd.Context(), req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d results\n", resp.Count)
	for _, item := range resp.Results {
		brand := ""
		if item.BrandName != "" {
			brand = "[" + item.BrandName + "] "
		}
		fmt.Fprintf(out, "- %s%s\n", brand, item.FeedbackText)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.GetFeedbackStats(cmd.Context(), statsBrand)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total feedback: %d\n", resp.TotalFeedback)
	for brand, count := range resp.Brands {
		fmt.Fprintf(out, "  %s: %d\n", brand, count)
	}
	return nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.GetBrandFeedback(cmd.Context(), args[0], feedbackLimit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d feedback entries for %s\n", len(resp.Feedback), args[0])
	for _, item := range resp.Feedback {
		fmt.Fprintf(out, "- %s\n", item.FeedbackText)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.history == nil {
		return fmt.Errorf("local history database %q could not be opened", cfg.DatabaseURL)
	}

	submissions, err := a.history.ListSubmissions(historyBrand, historyLimit)
	if err != nil {
		return err
	}
	generations, err := a.history.ListGenerations(historyBrand, historyLimit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{"submissions": submissions, "generations": generations})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submissions (%d)\n", len(submissions))
	for _, sub := range submissions {
		fmt.Fprintf(out, "  %s  %-16s %s\n", sub.CreatedAt.Local().Format("2006-01-02 15:04"), sub.BrandName, sub.FeedbackText)
	}
	fmt.Fprintf(out, "Generations (%d)\n", len(generations))
	for _, gen := range generations {
		fmt.Fprintf(out, "  %s  %-16s group %d, %d images\n", gen.CreatedAt.Local().Format("2006-01-02 15:04"), gen.BrandName, gen.GroupID, len(gen.Images))
	}
	return nil
}
