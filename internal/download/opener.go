package download

import (
	"fmt"
	"os/exec"
	"runtime"
)

// BrowserOpener opens URLs with the desktop's default handler.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	if !browsable(url) {
		return fmt.Errorf("opening %s: %w", url, ErrNotBrowsable)
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}
