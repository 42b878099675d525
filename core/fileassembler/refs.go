package fileassembler

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractRefs tokenizes content as HTML and returns, in document order,
// the attr value of every img element that carries one. An img element
// missing attr is skipped. Malformed markup is tolerated the same way
// html.Tokenizer tolerates it: parsing continues best-effort and never
// returns an error — an empty result on unparsable input is a valid,
// silent outcome per this package's "malformed content is a soft
// failure" contract.
func ExtractRefs(content string, attr string) []string {
	if attr == "" {
		attr = DefaultRefAttr
	}

	var refs []string
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return refs
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "img" {
				continue
			}
			for _, a := range token.Attr {
				if a.Key == attr {
					refs = append(refs, a.Val)
					break
				}
			}
		}
	}
}
