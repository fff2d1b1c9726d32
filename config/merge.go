package config

// Defaults returns a fresh copy of the default configuration document.
// Callers may mutate the result freely.
func Defaults() map[string]any {
	return map[string]any{
		"target": map[string]any{
			"url":             "",
			"allowed_domains": []any{},
			"blocked_paths":   []any{},
			"respect_robots":  false,
		},
		"crawl": map[string]any{
			"strategy":         "bfs",
			"max_depth":        3,
			"max_pages":        500,
			"include_external": false,
		},
		"markdown": map[string]any{
			"citations":           true,
			"body_width":          0,
			"skip_internal_links": false,
			"content_filter":      "none",
		},
		"content": map[string]any{
			"excluded_tags":        []any{},
			"excluded_selector":    "",
			"word_count_threshold": 0,
		},
		"performance": map[string]any{
			"prefetch":        true,
			"stream":          true,
			"concurrency":     4,
			"rate_limit":      10,
			"request_timeout": "30s",
			"retries":         2,
			"user_agent":      "mdcrawl/1.0 (+https://github.com/lukemcguire/mdcrawl)",
			"memory_limit_mb": 0,
		},
		"browser": map[string]any{
			"enabled":  false,
			"headless": true,
			"wait":     "0s",
		},
		"recovery": map[string]any{
			"enabled":    true,
			"state_file": "output/.crawl_state.json",
		},
		"output": map[string]any{
			"dir":           "output",
			"naming":        "url_path",
			"rewrite_links": true,
			"manifest":      "",
		},
	}
}

// Resolve merges a user document over the defaults. A nil document yields
// the defaults.
func Resolve(user map[string]any) map[string]any {
	return Merge(Defaults(), user)
}

// Merge overlays override onto base. Where both sides hold a mapping the
// merge recurses; otherwise the override value wins. Neither input is
// modified.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		baseMap, baseIsMap := asMap(out[k])
		overMap, overIsMap := asMap(v)
		if baseIsMap && overIsMap {
			out[k] = Merge(baseMap, overMap)
			continue
		}
		out[k] = v
	}
	return out
}

// asMap accepts both map shapes a YAML decoder may produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		converted := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			converted[key] = val
		}
		return converted, true
	default:
		return nil, false
	}
}
