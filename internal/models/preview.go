package models

// PreviewLength bounds content previews embedded in notifications.
const PreviewLength = 100

// Preview truncates content to PreviewLength characters, appending "..." when cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "..."
}
