package wanidata

import "strings"

// FmtArgs maps the markup tags embedded in mnemonic text to open/close
// strings. The CLI supplies ANSI escape pairs; EmptyArgs strips the tags.
type FmtArgs struct {
	Radical TagArgs
	Kanji   TagArgs
	Vocab   TagArgs
	Meaning TagArgs
	Reading TagArgs
	Ja      TagArgs
}

// TagArgs is one open/close replacement pair.
type TagArgs struct {
	Open  string
	Close string
}

// EmptyArgs strips all mnemonic markup.
var EmptyArgs = FmtArgs{}

// FormatText replaces the <radical>, <kanji>, <vocabulary>, <meaning>,
// <reading> and <ja> tags in mnemonic text with the configured pairs.
// Unrecognized angle-bracket text is left alone.
func FormatText(s string, args *FmtArgs) string {
	r := strings.NewReplacer(
		"<radical>", args.Radical.Open,
		"</radical>", args.Radical.Close,
		"<kanji>", args.Kanji.Open,
		"</kanji>", args.Kanji.Close,
		"<vocabulary>", args.Vocab.Open,
		"</vocabulary>", args.Vocab.Close,
		"<meaning>", args.Meaning.Open,
		"</meaning>", args.Meaning.Close,
		"<reading>", args.Reading.Open,
		"</reading>", args.Reading.Close,
		"<ja>", args.Ja.Open,
		"</ja>", args.Ja.Close,
	)
	return r.Replace(s)
}
