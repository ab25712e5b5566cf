package postgres

var (
	EncodeVector = encodeVector
	DecodeVector = decodeVector
)
