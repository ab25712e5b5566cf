package openai

var (
	ToMessages   = toMessages
	FromMessages = fromMessages
	NewClient    = newClient
)
