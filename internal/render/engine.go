// Package render wraps the Liquid template language for message rendering.
package render

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Engine renders message templates with caching. When escapeHTML is set,
// every caller-supplied string variable is HTML-escaped before binding, so
// submitted form values cannot inject markup into the rendered message.
type Engine struct {
	engine     *liquid.Engine
	cache      sync.Map // map[string]*liquid.Template
	escapeHTML bool
}

// NewEngine creates a template engine with the mailform filter set.
func NewEngine(escapeHTML bool) *Engine {
	e := &Engine{
		engine:     liquid.NewEngine(),
		escapeHTML: escapeHTML,
	}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// Fallback value: {{ name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// Truncate with ellipsis: {{ message | truncate: 80 }}
	e.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// URL encode: {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// Explicit HTML escape: {{ user_input | escape }}
	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// Extract domain from email: {{ email | email_domain }}
	e.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})

	// Mask email for display: {{ email | mask_email }}
	e.engine.RegisterFilter("mask_email", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) != 2 {
			return email
		}
		local := parts[0]
		if len(local) <= 2 {
			return local + "***@" + parts[1]
		}
		return local[:2] + "***@" + parts[1]
	})
}

// Parse compiles a template string and returns any syntax errors.
func (e *Engine) Parse(templateStr string) error {
	_, err := e.engine.ParseString(templateStr)
	return err
}

// Render processes a template with the given context. A non-empty cacheKey
// reuses the compiled template across renders; callers pass the template
// slug so an upsert with a new body also produces a new key via UpdatedAt.
func (e *Engine) Render(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	bind := ctx
	if e.escapeHTML {
		bind = escapeStrings(ctx)
	}

	if cacheKey != "" {
		if cached, ok := e.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(bind)
		}
	}

	tpl, err := e.engine.ParseString(templateStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	if cacheKey != "" {
		e.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(bind)
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return out, nil
}

// ClearCacheKey removes a compiled template, used after template upserts.
func (e *Engine) ClearCacheKey(key string) {
	e.cache.Delete(key)
}

// escapeStrings returns a copy of m with every string value HTML-escaped,
// descending into nested maps and slices.
func escapeStrings(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = escapeValue(v)
	}
	return out
}

func escapeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return html.EscapeString(val)
	case map[string]interface{}:
		return escapeStrings(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = escapeValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = html.EscapeString(item)
		}
		return out
	default:
		return v
	}
}
