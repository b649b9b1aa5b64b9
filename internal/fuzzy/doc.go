// Package fuzzy scores approximate string matches with the Bitap algorithm.
//
// Scores follow the Fuse.js conventions: 0 is a perfect match, 1 is no match,
// and a pattern matches a text when its best alignment needs at most
// Threshold*len(pattern) errors (plus a distance penalty unless
// IgnoreLocation is set). Patterns and texts are compared rune by rune.
package fuzzy
