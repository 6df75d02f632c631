package arxiv

import "strings"

// CleanID normalizes a user-supplied arXiv identifier or URL to a bare paper id.
// "2504.02828", "2504.02828.pdf", "https://arxiv.org/abs/2504.02828" and
// "https://arxiv.org/pdf/2504.02828.pdf" all yield "2504.02828". Cleaning a
// clean id returns it unchanged.
func CleanID(input string) string {
	id := strings.TrimSpace(input)
	id = strings.ReplaceAll(id, ".pdf", "")
	id = strings.TrimRight(id, "/")

	if !strings.Contains(id, "arxiv.org") {
		return id
	}

	if i := strings.IndexAny(id, "?#"); i != -1 {
		id = id[:i]
	}
	for _, marker := range []string{"/abs/", "/pdf/"} {
		if i := strings.Index(id, marker); i != -1 {
			return id[i+len(marker):]
		}
	}
	return id[strings.LastIndex(id, "/")+1:]
}

// CacheFileName returns the cache file name for an id. Old-style ids such as
// "hep-th/9901001" contain a slash, which is replaced to keep the file flat.
func CacheFileName(id string) string {
	return strings.ReplaceAll(id, "/", "_") + ".pdf"
}
