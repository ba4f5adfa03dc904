package avatar

import (
	"os/exec"
	"runtime"
)

// Viewer opens the local viewer frontend for a freshly started session.
type Viewer interface {
	Open(url string) error
}

// BrowserViewer launches the platform browser opener. The command is started
// without waiting; the orchestrator treats any launch failure as non-fatal.
type BrowserViewer struct{}

func (BrowserViewer) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// NopViewer is used in tests and headless deployments.
type NopViewer struct{}

func (NopViewer) Open(string) error { return nil }
