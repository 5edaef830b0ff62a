package security

import (
	"path"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const maxParseDepth = 3

// segment is one simple command found in a command line, with wrappers such
// as sudo or xargs peeled off.
type segment struct {
	Executable string
	Subcommand string
	Flags      map[string]bool
	Args       []string
	Redirects  []string
	Elevated   bool
}

// parsedCommand is the structural view the rules are matched against.
type parsedCommand struct {
	Raw      string
	Segments []segment
}

// parseCommand splits a command line into segments. Pipelines, lists,
// subshells, command substitutions and `bash -c` payloads are all visited.
// Input the shell parser rejects is split on separators instead.
func parseCommand(command string) parsedCommand {
	return parsedCommand{Raw: command, Segments: parseSegments(command, 0)}
}

func parseSegments(command string, depth int) []segment {
	if depth >= maxParseDepth {
		return nil
	}
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return fallbackSegments(command)
	}

	var segments []segment
	syntax.Walk(file, func(node syntax.Node) bool {
		stmt, ok := node.(*syntax.Stmt)
		if !ok {
			return true
		}
		redirects := writeRedirects(stmt.Redirs)
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			if len(redirects) > 0 {
				segments = append(segments, segment{Flags: map[string]bool{}, Redirects: redirects})
			}
			return true
		}
		words := make([]string, 0, len(call.Args))
		for _, word := range call.Args {
			words = append(words, wordText(word))
		}
		seg := buildSegment(words)
		seg.Redirects = redirects
		segments = append(segments, seg)
		if inner := inlineScript(seg, words); inner != "" {
			segments = append(segments, parseSegments(inner, depth+1)...)
		}
		return true
	})
	return segments
}

// buildSegment unwraps launcher commands and normalizes flags.
func buildSegment(words []string) segment {
	seg := segment{Flags: map[string]bool{}}
	words = unwrap(words, &seg)
	if len(words) == 0 {
		return seg
	}
	seg.Executable = path.Base(words[0])

	valueFlags := commandValueFlags[seg.Executable]
	rest := words[1:]
	signalGiven := false
	for i := 0; i < len(rest); i++ {
		word := rest[i]
		switch {
		case seg.Executable == "kill" && negativePID.MatchString(word) && (signalGiven || i == len(rest)-1):
			// kill -9 -1, kill -s KILL -1: a negative number after the
			// signal is a process group, not another signal.
			seg.Args = append(seg.Args, word)
		case word == "--":
			seg.Args = append(seg.Args, rest[i+1:]...)
			i = len(rest)
		case strings.HasPrefix(word, "--") && len(word) > 2:
			name, _, _ := strings.Cut(word[2:], "=")
			seg.Flags[name] = true
		case strings.HasPrefix(word, "-") && len(word) > 1:
			body := word[1:]
			seg.Flags[body] = true
			for _, ch := range body {
				seg.Flags[string(ch)] = true
			}
			if len(body) == 1 && strings.Contains(valueFlags, body) {
				i++
			}
			signalGiven = true
		default:
			seg.Args = append(seg.Args, word)
		}
	}
	if len(seg.Args) > 0 {
		seg.Subcommand = seg.Args[0]
	}
	return seg
}

var negativePID = regexp.MustCompile(`^-[0-9]+$`)

// commandValueFlags lists short flags that consume the following word, for
// commands whose rules look at positional arguments.
var commandValueFlags = map[string]string{
	"pkill":   "dgGPstuUF",
	"pgrep":   "dgGPstuUF",
	"killall": "suoy",
	"kill":    "sn",
	"git":     "Cc",
	"tar":     "fCT",
}

// wrapper commands run their arguments as another command. valueFlags take
// a separate argument.
var wrappers = map[string]struct {
	elevates   bool
	valueFlags string
	skipFirst  bool
}{
	"sudo":    {elevates: true, valueFlags: "ugUCDhprtT"},
	"doas":    {elevates: true, valueFlags: "uC"},
	"env":     {valueFlags: "uSC"},
	"nice":    {valueFlags: "n"},
	"nohup":   {},
	"time":    {},
	"command": {},
	"builtin": {},
	"exec":    {valueFlags: "a"},
	"xargs":   {valueFlags: "IiLlnPsdEa"},
	"stdbuf":  {valueFlags: "ioe"},
	"timeout": {valueFlags: "sk", skipFirst: true},
}

func unwrap(words []string, seg *segment) []string {
	for len(words) > 0 {
		spec, ok := wrappers[path.Base(words[0])]
		if !ok {
			return words
		}
		if spec.elevates {
			seg.Elevated = true
		}
		words = words[1:]
		for len(words) > 0 {
			word := words[0]
			switch {
			case word == "--":
				words = words[1:]
			case strings.HasPrefix(word, "-") && len(word) > 1:
				words = words[1:]
				if len(word) == 2 && strings.ContainsRune(spec.valueFlags, rune(word[1])) && len(words) > 0 {
					words = words[1:]
				}
				continue
			case strings.Contains(word, "=") && !strings.HasPrefix(word, "="):
				// env-style assignment
				words = words[1:]
				continue
			}
			break
		}
		if spec.skipFirst && len(words) > 0 {
			words = words[1:]
		}
	}
	return words
}

var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true, "fish": true,
}

// inlineScript returns the script passed to `sh -c`, `bash -lc`, or `eval`.
func inlineScript(seg segment, words []string) string {
	if seg.Executable == "eval" {
		return strings.Join(seg.Args, " ")
	}
	if !shellInterpreters[seg.Executable] {
		return ""
	}
	for i, word := range words {
		if strings.HasPrefix(word, "-") && !strings.HasPrefix(word, "--") && strings.ContainsRune(word, 'c') && i+1 < len(words) {
			return words[i+1]
		}
	}
	return ""
}

// ignoredRedirectTargets never count as writes.
var ignoredRedirectTargets = map[string]bool{
	"/dev/null": true, "/dev/stdout": true, "/dev/stderr": true, "/dev/tty": true,
}

func writeRedirects(redirs []*syntax.Redirect) []string {
	var targets []string
	for _, redir := range redirs {
		switch redir.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
		default:
			continue
		}
		if redir.Word == nil {
			continue
		}
		target := wordText(redir.Word)
		if ignoredRedirectTargets[target] || strings.HasPrefix(target, "/dev/fd/") {
			continue
		}
		targets = append(targets, target)
	}
	return targets
}

// wordText renders a word with quoting removed, keeping parameter
// expansions as $NAME so rules can match them.
func wordText(word *syntax.Word) string {
	var b strings.Builder
	for _, part := range word.Parts {
		writeWordPart(&b, part)
	}
	return b.String()
}

func writeWordPart(b *strings.Builder, part syntax.WordPart) {
	switch p := part.(type) {
	case *syntax.Lit:
		b.WriteString(p.Value)
	case *syntax.SglQuoted:
		b.WriteString(p.Value)
	case *syntax.DblQuoted:
		for _, inner := range p.Parts {
			writeWordPart(b, inner)
		}
	case *syntax.ParamExp:
		if p.Param != nil && !p.Length && p.Exp == nil && p.Repl == nil && p.Slice == nil && p.Index == nil {
			b.WriteString("$")
			b.WriteString(p.Param.Value)
			return
		}
		syntax.NewPrinter().Print(b, p)
	default:
		syntax.NewPrinter().Print(b, part)
	}
}

var (
	fallbackSeparators = regexp.MustCompile(`\|\||&&|[|;&\n]`)
	fallbackRedirect   = regexp.MustCompile(`&?>>?\|?\s*([^\s;&|<>]+)`)
)

func fallbackSegments(command string) []segment {
	var segments []segment
	for _, part := range fallbackSeparators.Split(command, -1) {
		var redirects []string
		for _, match := range fallbackRedirect.FindAllStringSubmatch(part, -1) {
			if target := match[1]; !ignoredRedirectTargets[target] && !strings.HasPrefix(target, "&") {
				redirects = append(redirects, target)
			}
		}
		part = fallbackRedirect.ReplaceAllString(part, "")
		words := strings.Fields(part)
		if len(words) == 0 {
			if len(redirects) > 0 {
				segments = append(segments, segment{Flags: map[string]bool{}, Redirects: redirects})
			}
			continue
		}
		for i, word := range words {
			words[i] = strings.Trim(word, `'"`)
		}
		seg := buildSegment(words)
		seg.Redirects = redirects
		segments = append(segments, seg)
	}
	return segments
}
