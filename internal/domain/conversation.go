package domain

// ContextEntry is a single persisted conversation turn.
type ContextEntry struct {
	PK       string
	SK       string
	ChatID   int64
	AuthorID int64
	Role     string
	Content  string
	TTL      int64
}

// TrainingRecord is one fire-and-forget training-log row. Either UserText or
// BotReply is set depending on Role.
type TrainingRecord struct {
	ChatID   int64
	AuthorID int64
	Username string
	IsGroup  bool
	UserText string
	BotReply string
	Sequence int64
	Role     string
}
