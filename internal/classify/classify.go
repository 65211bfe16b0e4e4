// Package classify recognizes the lines the sftp command-line client prints.
package classify

import (
	"regexp"
	"strings"
)

// Tag names the pattern a line matched.
type Tag int

const (
	TagUnrecognized Tag = iota
	TagConnected
	TagUploadProgress
	TagDownloadProgress
	TagPwdResult
	TagCdFailureShell
	TagCdFailureStat
	TagPrompt
)

func (t Tag) String() string {
	switch t {
	case TagConnected:
		return "connected"
	case TagUploadProgress:
		return "uploadProgress"
	case TagDownloadProgress:
		return "downloadProgress"
	case TagPwdResult:
		return "pwdResult"
	case TagCdFailureShell:
		return "cdFailureShell"
	case TagCdFailureStat:
		return "cdFailureStat"
	case TagPrompt:
		return "prompt"
	default:
		return "unrecognized"
	}
}

// Prompt is the sftp command prompt.
const Prompt = "sftp>"

const (
	connectedPrefix = "Connected"
	pwdPrefix       = "Remote working directory:"
	statPrefix      = "stat remote:"
)

var (
	uploadPattern   = regexp.MustCompile(`^Uploading (.+?) to (.+)$`)
	downloadPattern = regexp.MustCompile(`^Fetching (.+?) to (.+)$`)
	cdShellPattern  = regexp.MustCompile(`^-bash: cd: (.+): ([^:]+)$`)
)

// Line is the result of classifying one output line.
type Line struct {
	Tag Tag

	LocalPath  string
	RemotePath string
	Reason     string

	// Action and Args hold the command echoed after a prompt.
	Action string
	Args   string

	Raw string
}

// Command returns the echoed command of a prompt line, or "" for a bare prompt.
func (l Line) Command() string {
	if l.Args == "" {
		return l.Action
	}
	return l.Action + " " + l.Args
}

// Classify matches a trimmed, non-empty line against the known patterns.
// The first matching pattern wins; anything else is TagUnrecognized.
func Classify(line string) Line {
	if strings.HasPrefix(line, connectedPrefix) {
		return Line{Tag: TagConnected, Raw: line}
	}

	if m := uploadPattern.FindStringSubmatch(line); m != nil {
		return Line{Tag: TagUploadProgress, LocalPath: m[1], RemotePath: m[2], Raw: line}
	}
	if m := downloadPattern.FindStringSubmatch(line); m != nil {
		return Line{Tag: TagDownloadProgress, RemotePath: m[1], LocalPath: m[2], Raw: line}
	}

	if rest, ok := strings.CutPrefix(line, pwdPrefix); ok {
		return Line{Tag: TagPwdResult, RemotePath: strings.TrimSpace(rest), Raw: line}
	}

	if m := cdShellPattern.FindStringSubmatch(line); m != nil {
		return Line{
			Tag:        TagCdFailureShell,
			RemotePath: m[1],
			Reason:     strings.TrimSpace(m[2]),
			Raw:        line,
		}
	}

	if rest, ok := strings.CutPrefix(line, statPrefix); ok {
		return Line{Tag: TagCdFailureStat, Reason: strings.TrimSpace(rest), Raw: line}
	}

	if rest, ok := strings.CutPrefix(line, Prompt); ok {
		l := Line{Tag: TagPrompt, Raw: line}
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			l.Action = fields[0]
			l.Args = strings.Join(fields[1:], " ")
		}
		return l
	}

	return Line{Tag: TagUnrecognized, Raw: line}
}

// Reconstruct rebuilds the raw line from the extracted fields for the
// patterns where that is well defined.
func (l Line) Reconstruct() (string, bool) {
	switch l.Tag {
	case TagPwdResult:
		return pwdPrefix + " " + l.RemotePath, true
	case TagUploadProgress:
		return "Uploading " + l.LocalPath + " to " + l.RemotePath, true
	case TagDownloadProgress:
		return "Fetching " + l.RemotePath + " to " + l.LocalPath, true
	default:
		return "", false
	}
}
