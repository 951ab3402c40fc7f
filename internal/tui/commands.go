package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"brandviz.io/studio/internal/core"
	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/download"
	"brandviz.io/studio/internal/workflow"
)

const helpText = `Type a sentence to store it as feedback for the current brand.

/brand <name>            switch brand
/threshold <0.60-0.95>   similarity threshold for grouping
/groups                  load feedback groups
/generate <group> [n]    generate n design variations for a group
/more [n]                generate more variations for the same group
/download <n|all>        save generated images
/back                    back to the group list
/help                    this help
/quit                    exit`

var errUsage = errors.New("usage")

func (m Model) handleCommand(reply *domain.ChatMessage, input string) (Model, tea.Cmd) {
	fields := strings.Fields(input)
	args := fields[1:]
	state := m.studio.State()

	switch fields[0] {
	case "/quit", "/exit", "/q":
		reply.Resolve("Bye!", nil)
		return m, tea.Quit

	case "/help":
		reply.Resolve(helpText, nil)

	case "/brand":
		if len(args) == 0 {
			reply.Fail(fmt.Errorf("%w: /brand <name>", errUsage))
			break
		}
		m.brand = strings.Join(args, " ")
		reply.Resolve(fmt.Sprintf("Brand set to %s.", m.brand), nil)

	case "/threshold":
		if len(args) != 1 {
			reply.Fail(fmt.Errorf("%w: /threshold <value>", errUsage))
			break
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err == nil {
			err = state.SetThreshold(v)
		}
		if err != nil {
			reply.Fail(err)
			break
		}
		reply.Resolve(fmt.Sprintf("Similarity threshold set to %.2f.", v), nil)

	case "/groups":
		if m.brand == "" {
			reply.Fail(workflow.ErrBrandRequired)
			break
		}
		return m, m.fetchGroups(reply.ID, m.brand)

	case "/generate":
		if len(args) == 0 || len(args) > 2 {
			reply.Fail(fmt.Errorf("%w: /generate <group> [n]", errUsage))
			break
		}
		groupID, err := strconv.Atoi(args[0])
		if err != nil {
			reply.Fail(fmt.Errorf("%w: group must be a number", errUsage))
			break
		}
		n, err := optionalCount(args[1:])
		if err != nil {
			reply.Fail(err)
			break
		}
		return m, m.generate(reply.ID, groupID, n)

	case "/more":
		n, err := optionalCount(args)
		if err != nil {
			reply.Fail(err)
			break
		}
		return m, m.regenerate(reply.ID, n)

	case "/download":
		if len(args) != 1 {
			reply.Fail(fmt.Errorf("%w: /download <n|all>", errUsage))
			break
		}
		return m, m.download(reply.ID, args[0])

	case "/back":
		if err := state.BackToGroups(); err != nil {
			reply.Fail(errors.New("there are no groups to go back to"))
			break
		}
		reply.Resolve(formatGroups(state.Snapshot()), nil)

	default:
		reply.Fail(fmt.Errorf("unknown command %s, try /help", fields[0]))
	}
	return m, nil
}

func optionalCount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: variation count must be a positive number", errUsage)
	}
	return n, nil
}

// The commands below run off the update loop; they only read the model's
// immutable fields and report back through a replyMsg.

func (m Model) storeNote(id, brand, text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.preferences.StoreNote(m.ctx, brand, text, "")
		if err != nil {
			return replyMsg{id: id, err: err}
		}
		if !resp.Stored {
			return replyMsg{id: id, text: "The service did not confirm the feedback was stored."}
		}
		return replyMsg{id: id, text: fmt.Sprintf("Saved as feedback for %s.", brand)}
	}
}

func (m Model) fetchGroups(id, brand string) tea.Cmd {
	return func() tea.Msg {
		err := m.studio.FetchGroups(m.ctx, brand)
		if core.IsStale(err) {
			return replyMsg{id: id, text: "Superseded by a newer request."}
		}
		if err != nil {
			return replyMsg{id: id, err: err}
		}
		snap := m.studio.State().Snapshot()
		if len(snap.Groups) == 0 {
			return replyMsg{id: id, text: snap.Notice}
		}
		return replyMsg{id: id, text: formatGroups(snap)}
	}
}

func (m Model) generate(id string, groupID, n int) tea.Cmd {
	return func() tea.Msg {
		return m.generationReply(id, m.studio.Generate(m.ctx, groupID, n))
	}
}

func (m Model) regenerate(id string, n int) tea.Cmd {
	return func() tea.Msg {
		return m.generationReply(id, m.studio.Regenerate(m.ctx, n))
	}
}

func (m Model) generationReply(id string, err error) replyMsg {
	if core.IsStale(err) {
		return replyMsg{id: id, text: "Superseded by a newer request."}
	}
	if errors.Is(err, workflow.ErrInvalidTransition) {
		return replyMsg{id: id, err: errors.New("load groups with /groups first")}
	}
	if err != nil {
		return replyMsg{id: id, err: err}
	}
	snap := m.studio.State().Snapshot()
	text := fmt.Sprintf("Generated %d variations", len(snap.Images))
	if snap.Selected != nil {
		text += fmt.Sprintf(" for group %d", snap.Selected.GroupID)
	}
	return replyMsg{id: id, text: text + ". Use /download <n> to save one.", images: snap.Images}
}

func (m Model) download(id, which string) tea.Cmd {
	return func() tea.Msg {
		snap := m.studio.State().Snapshot()
		if len(snap.Images) == 0 {
			return replyMsg{id: id, err: errors.New("nothing to download yet, use /generate first")}
		}
		groupID := -1
		if snap.Selected != nil {
			groupID = snap.Selected.GroupID
		}

		var items []download.Item
		if which == "all" {
			for _, img := range snap.Images {
				items = append(items, download.Item{Image: img, Filename: img.Filename(snap.Brand, groupID)})
			}
		} else {
			n, err := strconv.Atoi(which)
			if err != nil || n < 1 || n > len(snap.Images) {
				return replyMsg{id: id, err: fmt.Errorf("pick an image between 1 and %d", len(snap.Images))}
			}
			img := snap.Images[n-1]
			items = append(items, download.Item{Image: img, Filename: img.Filename(snap.Brand, groupID)})
		}

		results, err := m.downloader.BatchDownload(m.ctx, items, m.batchDelay)
		if err != nil {
			return replyMsg{id: id, err: err}
		}
		return replyMsg{id: id, text: formatDownloads(results)}
	}
}

func formatGroups(snap workflow.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d groups for %s (threshold %.2f):", len(snap.Groups), snap.Brand, snap.Threshold)
	for _, g := range snap.Groups {
		fmt.Fprintf(&sb, "\n  [%d] %d%% relevance (%s), %d items", g.GroupID, g.RelevancePercent(), g.RelevanceTier(), g.Count())
		if g.Summary != "" {
			fmt.Fprintf(&sb, "\n      %s", g.Summary)
		}
		if g.KeyThemes != "" {
			fmt.Fprintf(&sb, "\n      themes: %s", g.KeyThemes)
		}
	}
	sb.WriteString("\nUse /generate <group> to create designs.")
	return sb.String()
}

func formatDownloads(results []download.Result) string {
	lines := make([]string, 0, len(results))
	for _, res := range results {
		switch {
		case res.FellBack:
			lines = append(lines, fmt.Sprintf("%s: could not fetch it, opened the image in your browser instead", res.Filename))
		case res.Err != nil:
			lines = append(lines, fmt.Sprintf("%s: %v", res.Filename, res.Err))
		default:
			lines = append(lines, fmt.Sprintf("Saved %s", res.Path))
		}
	}
	return strings.Join(lines, "\n")
}
