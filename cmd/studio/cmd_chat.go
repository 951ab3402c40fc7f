package main

import (
	"github.com/spf13/cobra"

	"brandviz.io/studio/internal/tui"
)

var chatBrand string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat-style terminal UI",
	Long: `Opens an interactive chat. Type feedback in plain sentences to store it
for the current brand, and use slash commands (/groups, /generate,
/download, /help) to turn it into designs.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatBrand, "brand", "", "Brand to start with")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(cmd.Context(), tui.Config{Brand: chatBrand, BatchDelay: cfg.DownloadDelay},
		a.preferences, a.studio, a.downloader, logger)
	return tui.Run(model)
}
