package search

// EnglishStopwords is the Snowball English stop list, the one PostgreSQL's
// 'english' text search configuration drops before matching.
var EnglishStopwords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "your",
	"yours", "yourself", "yourselves", "he", "him", "his", "himself", "she",
	"her", "hers", "herself", "it", "its", "itself", "they", "them", "their",
	"theirs", "themselves", "what", "which", "who", "whom", "this", "that",
	"these", "those", "am", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having", "do", "does", "did", "doing", "a", "an",
	"the", "and", "but", "if", "or", "because", "as", "until", "while", "of",
	"at", "by", "for", "with", "about", "against", "between", "into",
	"through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "then", "once", "here", "there", "when", "where", "why", "how",
	"all", "any", "both", "each", "few", "more", "most", "other", "some",
	"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
	"very", "s", "t", "can", "will", "just", "don", "should", "now",
}

var englishStop = func() map[string]struct{} {
	var c config
	WithStopwords(EnglishStopwords)(&c)
	return c.stopwords
}()

// Keywords returns Terms(s) without English stopwords. A query made only of
// stopwords has no keywords.
func Keywords(s string) []string {
	terms := Terms(s)
	out := terms[:0]
	for _, t := range terms {
		if _, skip := englishStop[t]; !skip {
			out = append(out, t)
		}
	}
	return out
}
