package messages

// MaxMessageLen is Telegram's limit for one text message.
const MaxMessageLen = 4096

// Chunk splits text into pieces of at most max runes, in order.
func Chunk(text string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/max+1)
	for len(runes) > 0 {
		n := min(max, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
