package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Language is one ast-grep --lang value with the names and extensions it covers.
type Language struct {
	Name       string // canonical --lang value
	Aliases    []string
	Extensions []string
}

var languages = []Language{
	{Name: "bash", Aliases: []string{"sh", "shell"}, Extensions: []string{".sh", ".bash", ".bats", ".zsh", ".ksh"}},
	{Name: "c", Extensions: []string{".c", ".h"}},
	{Name: "cpp", Aliases: []string{"c++", "cxx"}, Extensions: []string{".cc", ".cpp", ".cxx", ".c++", ".hh", ".hpp", ".hxx", ".cu", ".ino"}},
	{Name: "csharp", Aliases: []string{"cs", "c#"}, Extensions: []string{".cs"}},
	{Name: "css", Aliases: []string{"scss"}, Extensions: []string{".css", ".scss"}},
	{Name: "elixir", Aliases: []string{"ex"}, Extensions: []string{".ex", ".exs"}},
	{Name: "go", Aliases: []string{"golang"}, Extensions: []string{".go"}},
	{Name: "haskell", Aliases: []string{"hs"}, Extensions: []string{".hs"}},
	{Name: "html", Aliases: []string{"htm"}, Extensions: []string{".html", ".htm", ".xhtml"}},
	{Name: "java", Extensions: []string{".java"}},
	{Name: "javascript", Aliases: []string{"js", "jsx", "node"}, Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}},
	{Name: "json", Extensions: []string{".json"}},
	{Name: "kotlin", Aliases: []string{"kt"}, Extensions: []string{".kt", ".kts", ".ktm"}},
	{Name: "lua", Extensions: []string{".lua"}},
	{Name: "php", Extensions: []string{".php"}},
	{Name: "python", Aliases: []string{"py", "python3"}, Extensions: []string{".py", ".py3", ".pyi", ".bzl"}},
	{Name: "ruby", Aliases: []string{"rb"}, Extensions: []string{".rb", ".rbw", ".gemspec"}},
	{Name: "rust", Aliases: []string{"rs"}, Extensions: []string{".rs"}},
	{Name: "scala", Extensions: []string{".scala", ".sc", ".sbt"}},
	{Name: "swift", Extensions: []string{".swift"}},
	{Name: "tsx", Extensions: []string{".tsx"}},
	{Name: "typescript", Aliases: []string{"ts"}, Extensions: []string{".ts", ".cts", ".mts"}},
	{Name: "yaml", Aliases: []string{"yml"}, Extensions: []string{".yml", ".yaml"}},
}

var (
	languageByName = map[string]*Language{}
	languageByExt  = map[string]*Language{}
)

func init() {
	for i := range languages {
		l := &languages[i]
		languageByName[l.Name] = l
		for _, alias := range l.Aliases {
			languageByName[alias] = l
		}
		for _, ext := range l.Extensions {
			languageByExt[ext] = l
		}
	}
}

// LookupLanguage resolves a name or alias, case-insensitively.
func LookupLanguage(name string) (Language, bool) {
	l, ok := languageByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Language{}, false
	}
	return *l, true
}

// LanguageForPath infers the language of a file from its extension.
func LanguageForPath(path string) (Language, bool) {
	l, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Language{}, false
	}
	return *l, true
}

// Languages lists the canonical names in alphabetical order.
func Languages() []string {
	names := make([]string, 0, len(languages))
	for _, l := range languages {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

// SuggestLanguage returns the closest known name for an unrecognised one, or ""
// when nothing is within two edits.
func SuggestLanguage(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return ""
	}

	bestMatch := ""
	bestDistance := 1000
	for name := range languageByName {
		distance := edlib.LevenshteinDistance(input, name)
		if distance < bestDistance || (distance == bestDistance && name < bestMatch) {
			bestDistance = distance
			bestMatch = name
		}
	}
	if bestDistance > 2 {
		return ""
	}
	return languageByName[bestMatch].Name
}

// extensionSet collects the extensions of the named languages. Unknown names
// are ignored; an empty result means "every known extension".
func extensionSet(names []string) map[string]bool {
	set := map[string]bool{}
	for _, name := range names {
		if l, ok := LookupLanguage(name); ok {
			for _, ext := range l.Extensions {
				set[ext] = true
			}
		}
	}
	if len(set) == 0 {
		for ext := range languageByExt {
			set[ext] = true
		}
	}
	return set
}
