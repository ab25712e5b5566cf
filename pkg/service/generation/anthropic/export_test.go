package anthropic

var (
	ToMessages   = toMessages
	FromMessages = fromMessages
	NewClient    = newClient
)
