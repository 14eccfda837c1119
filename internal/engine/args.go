package engine

// JSONStreamFlag asks ast-grep for one JSON object per line.
const JSONStreamFlag = "--json=stream"

// ExitNoMatches is the code `ast-grep run` exits with when nothing matched.
// `ast-grep scan` uses the same code when an error-severity rule fired.
const ExitNoMatches = 1

// RunOptions describes an `ast-grep run` invocation.
type RunOptions struct {
	Pattern   string
	Language  string
	Rewrite   *string // nil means search only; "" deletes the match
	UpdateAll bool    // write rewrites to disk; implies plain (non-JSON) output
	Stdin     bool
	Paths     []string
}

// RunArgs builds the command line for `ast-grep run`.
func RunArgs(o RunOptions) []string {
	args := []string{"run", "--pattern", o.Pattern}
	if o.Language != "" {
		args = append(args, "--lang", o.Language)
	}
	if o.Rewrite != nil {
		args = append(args, "--rewrite", *o.Rewrite)
	}
	if o.UpdateAll {
		args = append(args, "--update-all")
	} else {
		args = append(args, JSONStreamFlag)
	}
	return appendTargets(args, o.Stdin, o.Paths)
}

// ScanOptions describes an `ast-grep scan` invocation with inline rules.
type ScanOptions struct {
	InlineRules string // one or more YAML rule documents separated by "---"
	Stdin       bool
	Paths       []string
}

// ScanArgs builds the command line for `ast-grep scan`.
func ScanArgs(o ScanOptions) []string {
	args := []string{"scan", "--inline-rules", o.InlineRules, JSONStreamFlag}
	return appendTargets(args, o.Stdin, o.Paths)
}

func appendTargets(args []string, stdin bool, paths []string) []string {
	if stdin {
		return append(args, "--stdin")
	}
	if len(paths) == 0 {
		return args
	}
	args = append(args, "--")
	return append(args, paths...)
}

// ChunkPaths splits paths into groups of at most size, preserving order.
// size <= 0 returns a single chunk.
func ChunkPaths(paths []string, size int) [][]string {
	if len(paths) == 0 {
		return nil
	}
	if size <= 0 || len(paths) <= size {
		return [][]string{paths}
	}
	chunks := make([][]string, 0, (len(paths)+size-1)/size)
	for start := 0; start < len(paths); start += size {
		end := min(start+size, len(paths))
		chunks = append(chunks, paths[start:end])
	}
	return chunks
}
