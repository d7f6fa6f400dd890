package indexer

// ChunkText splits text into fixed-size overlapping substrings.
//
// Windows are size bytes long starting at offset 0 and advancing by
// size-overlap; the final chunk runs to end-of-text and may be shorter.
// remaining is the global chunk budget left for the whole corpus: chunking
// stops early, mid-file, once it is exhausted. Empty text yields no chunks.
func ChunkText(text string, size, overlap, remaining int) []string {
	if text == "" || size <= 0 || remaining <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	n := len(text)
	i := 0
	for i < n && len(chunks) < remaining {
		j := i + size
		if j > n {
			j = n
		}
		chunks = append(chunks, text[i:j])
		if j == n {
			break
		}
		i = j - overlap
	}
	return chunks
}
