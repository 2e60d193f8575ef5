package assets

import "embed"

//go:embed *.svg
var FS embed.FS

const (
	Icon  = "icon.svg"
	Badge = "badge.svg"
)

func List() []string {
	return []string{
		Icon,
		Badge,
	}
}
