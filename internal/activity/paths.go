package activity

import (
	"sort"
	"strings"
)

// NormalizePath trims whitespace and trailing slashes and forces a leading slash.
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// LikePrefix returns a LIKE pattern matching every path strictly below p.
func LikePrefix(p string) string {
	if p == "/" {
		return "/%"
	}
	return escapeLike(p) + "/%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isUnder reports whether path equals root or lies below it.
func isUnder(path, root string) bool {
	if root == "/" {
		return true
	}
	return path == root || strings.HasPrefix(path, root+"/")
}

// normalizePaths normalises, sorts and removes paths already covered by
// another entry so overlapping roots are not counted twice.
func normalizePaths(raw []string) []string {
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		paths = append(paths, NormalizePath(p))
	}
	sort.Strings(paths)

	var kept []string
	for _, p := range paths {
		covered := false
		for _, k := range kept {
			if isUnder(p, k) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, p)
		}
	}
	return kept
}

// childFolders returns the immediate sub-folders of root that contain items,
// given the paths of every item below root.
func childFolders(root string, itemPaths []string) []string {
	seen := map[string]struct{}{}
	var folders []string
	for _, p := range itemPaths {
		if !isUnder(p, root) {
			continue
		}
		rest := strings.TrimPrefix(p, root)
		rest = strings.TrimPrefix(rest, "/")
		idx := strings.Index(rest, "/")
		if idx <= 0 {
			continue
		}
		folder := joinPath(root, rest[:idx])
		if _, ok := seen[folder]; ok {
			continue
		}
		seen[folder] = struct{}{}
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders
}

func joinPath(root, name string) string {
	if root == "/" {
		return "/" + name
	}
	return root + "/" + name
}

// baseName is the last path segment, or "/" for the root.
func baseName(p string) string {
	if p == "/" {
		return "/"
	}
	return p[strings.LastIndex(p, "/")+1:]
}
