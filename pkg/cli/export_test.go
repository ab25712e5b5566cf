package cli

var (
	GetIndexConfig = getIndexConfig
	PrintFacts     = printFacts
	PrintMemories  = printMemories
	ToMemoryViews  = toMemoryViews
)
