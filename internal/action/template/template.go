// Package template provides an action for rendering templates to the remote side.
package template

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/codemonument/sftpc/internal/action"
)

func init() {
	action.Register(&Action{})
}

// Action renders a local Go template and uploads the result.
type Action struct{}

// Name returns the action identifier.
func (a *Action) Name() string {
	return "template"
}

// Run executes the template action.
//
// Parameters:
//   - src (string, required): Local template file
//   - dest (string, required): Remote destination path
//   - mode (string): Permissions in octal (e.g., "0644")
//   - backup (bool): Rename an existing destination before overwriting (default: false)
//   - create_dirs (bool): Create parent directories if needed (default: false)
//
// Plan variables, facts, and registered results are passed by the runner
// in _template_vars.
func (a *Action) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	src, err := action.RequireString(params, "src")
	if err != nil {
		return nil, err
	}

	dest, err := action.RequireString(params, "dest")
	if err != nil {
		return nil, err
	}

	mode := action.GetString(params, "mode", "")
	if err := action.ParseMode(mode); err != nil {
		return nil, err
	}

	templateContent, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file '%s': %w", src, err)
	}

	rendered, err := Render(src, string(templateContent), action.GetMap(params, "_template_vars"))
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	res, err := action.UploadContent(ctx, sess, rendered, dest, action.ContentOptions{
		Mode:       mode,
		Force:      true,
		Backup:     action.GetBool(params, "backup", false),
		CreateDirs: action.GetBool(params, "create_dirs", false),
	})
	if err != nil {
		return nil, err
	}
	res.Message = strings.Replace(res.Message, "file", "template", 1)
	return res, nil
}

// Render renders a Go template with the given variables.
func Render(name, content string, vars map[string]any) ([]byte, error) {
	tmpl := template.New(name).Option("missingkey=zero").Funcs(template.FuncMap{
		"default": func(def, val any) any {
			if val == nil || val == "" {
				return def
			}
			return val
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"trim":  strings.TrimSpace,
		"join": func(sep string, items any) string {
			var strs []string
			switch v := items.(type) {
			case []any:
				for _, item := range v {
					strs = append(strs, fmt.Sprintf("%v", item))
				}
			case []string:
				strs = v
			}
			return strings.Join(strs, sep)
		},
	})

	tmpl, err := tmpl.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.Bytes(), nil
}

// Ensure Action implements the action.Action interface.
var _ action.Action = (*Action)(nil)
