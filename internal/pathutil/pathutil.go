// Package pathutil provides pure helpers for the virtual filesystem's
// slash-rooted path strings. All functions are total: malformed input is
// never an error, it simply produces a path that resolves to nothing.
package pathutil

import "strings"

// Normalize ensures a path has a single leading slash and no trailing slash
// (except for the root itself).
func Normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

// Basename returns the final path segment. For the root it returns "/"
// (display only).
func Basename(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentOf returns the path of the containing directory, or "" for the root.
func ParentOf(path string) string {
	if path == "/" || path == "" {
		return ""
	}
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

// Join resolves a shell token against a working directory. Absolute tokens
// pass through unchanged, ".." moves to the parent (collapsing to "/" at the
// root), everything else is appended with a single separator.
func Join(cwd, token string) string {
	switch {
	case strings.HasPrefix(token, "/"):
		return token
	case token == "..":
		parent := ParentOf(cwd)
		if parent == "" {
			return "/"
		}
		return parent
	case cwd == "/":
		return "/" + token
	default:
		return cwd + "/" + token
	}
}

// ChildPath builds the path of a child entry under a directory.
func ChildPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
