package gemini

var (
	ToContents   = toContents
	FromContents = fromContents
	NewClient    = newClient
)
