package prg2021

import "strings"

// streetTypes maps the AD_Ulica typ code to the word written before the name.
// Plain streets (1) and the catch-all linear (15) and area (16) types have none.
var streetTypes = map[string]string{
	"1":  "",
	"2":  "aleja",
	"3":  "plac",
	"4":  "skwer",
	"5":  "bulwar",
	"6":  "rondo",
	"7":  "park",
	"8":  "rynek",
	"9":  "szosa",
	"10": "droga",
	"11": "osiedle",
	"12": "ogród",
	"13": "wyspa",
	"14": "wybrzeże",
	"15": "",
	"16": "",
}

// shortForms are abbreviations that already stand in for the type word.
var shortForms = map[string]string{
	"2":  "al.",
	"3":  "pl.",
	"11": "os.",
}

// StreetName builds the display name of a street: type word, then part2, then
// part1, skipping empty parts. The type word is omitted when part1 already
// starts with it or with its abbreviation.
func StreetName(part1, part2, typ string) string {
	part1 = strings.TrimSpace(part1)
	part2 = strings.TrimSpace(part2)
	typ = strings.TrimSpace(typ)

	prefix := streetTypes[typ]
	lower := strings.ToLower(part1)
	if strings.HasPrefix(lower, prefix) {
		prefix = ""
	} else if short, ok := shortForms[typ]; ok && strings.HasPrefix(lower, short) {
		prefix = ""
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, part2, part1} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
