package preview

import "os"

// selectImage inspects the session workspace root for a stack signal and
// returns the matching preview image, defaulting to the Bun image when
// neither signal is present.
func (s *Service) selectImage(workspacePath string) string {
	if detectPython(workspacePath) {
		return s.cfg.PythonPreviewImage
	}
	return s.cfg.BunPreviewImage
}

func detectPython(workspacePath string) bool {
	for _, name := range []string{"pyproject.toml", "requirements.txt"} {
		if fileExists(workspacePath + "/" + name) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
